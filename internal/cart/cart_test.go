package cart

import (
	"math/rand"
	"testing"

	"github.com/mmeshcher/dukapay/internal/model"
)

func testSnapshot() []model.Item {
	return []model.Item{
		{ID: 1, Name: "Tilapia", PriceCents: 35000, Stock: 20},
		{ID: 2, Name: "Catfish", PriceCents: 36000, Stock: 10},
		{ID: 3, Name: "Fish Feed", PriceCents: 30000, Stock: 50},
	}
}

func TestAdd_IncrementsQuantity(t *testing.T) {
	c := New(testSnapshot())

	if !c.Add(1) {
		t.Fatalf("Add(1) = false, want true")
	}
	if !c.Add(1) {
		t.Fatalf("Add(1) = false, want true")
	}

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}
	if lines[0].ItemID != 1 || lines[0].Quantity != 2 {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
}

func TestAdd_UnknownItem(t *testing.T) {
	c := New(testSnapshot())

	if c.Add(99) {
		t.Fatalf("Add(99) = true for item absent from snapshot")
	}
	if c.Len() != 0 {
		t.Fatalf("cart not empty after rejected add")
	}
}

func TestRemove_DropsLineAtZero(t *testing.T) {
	c := New(testSnapshot())

	c.Add(2)
	c.Add(2)
	c.Remove(2)

	if lines := c.Lines(); len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("unexpected lines after remove: %+v", lines)
	}

	c.Remove(2)

	if c.Len() != 0 {
		t.Fatalf("line must be dropped when quantity reaches zero")
	}
}

func TestRemove_AbsentLineIsNoop(t *testing.T) {
	c := New(testSnapshot())

	c.Remove(1)

	if c.Len() != 0 {
		t.Fatalf("remove on absent line must be a no-op")
	}
}

func TestTotalCents(t *testing.T) {
	c := New(testSnapshot())

	c.Add(1)
	c.Add(1)

	if total := c.TotalCents(); total != 70000 {
		t.Fatalf("total = %d, want 70000", total)
	}

	c.Add(3)

	if total := c.TotalCents(); total != 100000 {
		t.Fatalf("total = %d, want 100000", total)
	}
}

func TestClear(t *testing.T) {
	c := New(testSnapshot())

	c.Add(1)
	c.Add(2)
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("cart not empty after Clear")
	}
	if total := c.TotalCents(); total != 0 {
		t.Fatalf("total = %d after Clear, want 0", total)
	}
}

func TestInvariants_RandomOperations(t *testing.T) {
	snapshot := testSnapshot()
	c := New(snapshot)

	prices := make(map[int64]int64, len(snapshot))
	ids := make([]int64, 0, len(snapshot))
	for _, it := range snapshot {
		prices[it.ID] = it.PriceCents
		ids = append(ids, it.ID)
	}

	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		id := ids[rng.Intn(len(ids))]
		if rng.Intn(2) == 0 {
			c.Add(id)
		} else {
			c.Remove(id)
		}

		var want int64
		for _, line := range c.Lines() {
			if line.Quantity <= 0 {
				t.Fatalf("line with non-positive quantity: %+v", line)
			}
			if _, ok := prices[line.ItemID]; !ok {
				t.Fatalf("line references item outside snapshot: %+v", line)
			}
			want += prices[line.ItemID] * line.Quantity
		}

		if got := c.TotalCents(); got != want {
			t.Fatalf("total = %d, want %d", got, want)
		}
	}
}
