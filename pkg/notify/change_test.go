package notify

import (
	"strings"
	"testing"

	"github.com/Sternrassler/pickup-client/pkg/order"
)

func TestFilter_Matches(t *testing.T) {
	own := OrderChanged(EventUpdate, "o1", "u1", order.StatusConfirmed)
	other := OrderChanged(EventUpdate, "o2", "u2", order.StatusConfirmed)
	item := AvailabilityChanged("i1", false)

	tests := []struct {
		name   string
		filter Filter
		change Change
		want   bool
	}{
		{"user sees own order", Filter{UserID: "u1"}, own, true},
		{"user misses other order", Filter{UserID: "u1"}, other, false},
		{"user without catalog", Filter{UserID: "u1"}, item, false},
		{"user with catalog", Filter{UserID: "u1", Catalog: true}, item, true},
		{"staff sees every order", Filter{AllOrders: true}, other, true},
		{"catalog only", Filter{Catalog: true}, own, false},
		{"unknown table", Filter{AllOrders: true, Catalog: true}, Change{Table: "carts"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.change); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Empty(t *testing.T) {
	if !(Filter{}).Empty() {
		t.Error("zero filter should be empty")
	}
	if (Filter{Catalog: true}).Empty() {
		t.Error("catalog filter is not empty")
	}
}

func TestAvailabilityChanged(t *testing.T) {
	c := AvailabilityChanged("i1", false)
	if c.Table != TableCatalog || c.RowID != "i1" {
		t.Errorf("unexpected change %+v", c)
	}
	if c.Available == nil || *c.Available {
		t.Errorf("Available = %v, want false", c.Available)
	}
}

func TestRoutingKeys(t *testing.T) {
	key, err := routingKey(OrderChanged(EventInsert, "o1", "u1", order.StatusPending))
	if err != nil || key != "orders.7531" {
		t.Errorf("routingKey(order) = %q, %v", key, err)
	}
	key, err = routingKey(AvailabilityChanged("i1", true))
	if err != nil || key != "catalog" {
		t.Errorf("routingKey(catalog) = %q, %v", key, err)
	}
	if _, err := routingKey(Change{Table: "carts"}); err == nil {
		t.Error("routingKey(carts) should fail")
	}

	keys := bindingKeys(Filter{UserID: "u1", AllOrders: true, Catalog: true})
	if len(keys) != 2 || keys[0] != "orders.#" || keys[1] != "catalog" {
		t.Errorf("bindingKeys() = %v", keys)
	}
}

// topicMatch reports whether an AMQP topic binding matches a routing key.
func topicMatch(binding, key string) bool {
	return matchWords(strings.Split(binding, "."), strings.Split(key, "."))
}

func matchWords(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if matchWords(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && matchWords(pattern[1:], words[1:])
	default:
		return len(words) > 0 && words[0] == pattern[0] && matchWords(pattern[1:], words[1:])
	}
}

func TestRoutingKeys_DottedUserIDs(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		userID  string
		matches bool
	}{
		{"staff sees dotted id", Filter{AllOrders: true}, "jane.doe@example.com", true},
		{"staff sees plain id", Filter{AllOrders: true}, "u1", true},
		{"owner sees dotted id", Filter{UserID: "jane.doe@example.com"}, "jane.doe@example.com", true},
		{"wildcard id is literal", Filter{UserID: "jane.*"}, "jane.doe", false},
		{"hash id is literal", Filter{UserID: "#"}, "u2", false},
		{"other user", Filter{UserID: "u1"}, "u2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := routingKey(OrderChanged(EventUpdate, "o1", tt.userID, order.StatusConfirmed))
			if err != nil {
				t.Fatalf("routingKey() error = %v", err)
			}
			got := false
			for _, b := range bindingKeys(tt.filter) {
				if topicMatch(b, key) {
					got = true
				}
			}
			if got != tt.matches {
				t.Errorf("bindings %v vs key %q: match = %v, want %v", bindingKeys(tt.filter), key, got, tt.matches)
			}
		})
	}
}
