package checkout

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOrderForm(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		display   string
		wantName  string
		wantItems int
		wantTotal string
	}{
		{
			name:      "short form uses lines after the first",
			raw:       "Jan,Warsaw,jan@x.com,123456789\nWidget/2/300",
			wantName:  "Jan,Warsaw,jan@x.com,123456789",
			wantItems: 1,
			wantTotal: "600",
		},
		{
			name:      "full form skips contact lines",
			raw:       "Jan Kowalski\nWarsaw\njan@x.com\n123456789\nWidget/2/300\nGadget / 1 / 49.99 zł",
			wantName:  "Jan Kowalski",
			wantItems: 2,
			wantTotal: "649.99",
		},
		{
			name:      "blank lines are dropped before counting",
			raw:       "\n  Jan  \n\n Warsaw\n\njan@x.com\n123\n\nLamp/3/10\n",
			wantName:  "Jan",
			wantItems: 1,
			wantTotal: "30",
		},
		{
			name:      "malformed lines add nothing",
			raw:       "Jan\nno slashes here\nhalf/line\nWidget/2/300",
			wantName:  "Jan",
			wantItems: 1,
			wantTotal: "600",
		},
		{
			name:      "empty form falls back to display name",
			raw:       "   \n",
			display:   "Ola",
			wantName:  "Ola",
			wantTotal: "0",
		},
		{
			name:      "empty form without display name",
			raw:       "",
			wantName:  defaultCustomerName,
			wantTotal: "0",
		},
		{
			name:      "negative quantity reduces the total",
			raw:       "Jan\nWidget/-2/300\nGadget/3/300",
			wantName:  "Jan",
			wantItems: 2,
			wantTotal: "300",
		},
		{
			name:      "zero quantity counts as one",
			raw:       "Jan\nWidget/0/300",
			wantName:  "Jan",
			wantItems: 1,
			wantTotal: "300",
		},
		{
			name:      "oversized quantity saturates",
			raw:       "Jan\nWidget/99999999999999999999/300",
			wantName:  "Jan",
			wantItems: 1,
			wantTotal: "2767011611056432742100",
		},
		{
			name:      "single line has no items",
			raw:       "Jan",
			wantName:  "Jan",
			wantTotal: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOrderForm(tt.raw, tt.display)
			if got.Name != tt.wantName {
				t.Fatalf("name = %q, want %q", got.Name, tt.wantName)
			}
			if len(got.Items) != tt.wantItems {
				t.Fatalf("items = %d, want %d", len(got.Items), tt.wantItems)
			}
			if want := decimal.RequireFromString(tt.wantTotal); !got.Total.Equal(want) {
				t.Fatalf("total = %s, want %s", got.Total, want)
			}
		})
	}
}

func TestParseOrderFormTotalIsSumOfItems(t *testing.T) {
	form := ParseOrderForm("A\nB\nC\nD\nx/2/1.5\ny/abc/10\nz/-3/7\nbad\nw/4/", "")
	sum := decimal.Zero
	for _, it := range form.Items {
		sum = sum.Add(it.Subtotal())
	}
	if !form.Total.Equal(sum) {
		t.Fatalf("total %s != sum of items %s", form.Total, sum)
	}
	// 2*1.5 + 1*10 - 3*7 + 4*0
	if want := decimal.NewFromInt(-8); !form.Total.Equal(want) {
		t.Fatalf("total = %s, want %s", form.Total, want)
	}
}

func TestParseItemLine(t *testing.T) {
	tests := []struct {
		line      string
		ok        bool
		wantName  string
		wantQty   int64
		wantPrice string
	}{
		{line: "Widget/2/300", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "300"},
		{line: " Widget / 2 / 300 PLN ", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "300"},
		{line: "Widget/3pcs/12.50", ok: true, wantName: "Widget", wantQty: 3, wantPrice: "12.5"},
		{line: "Widget/many/100", ok: true, wantName: "Widget", wantQty: 1, wantPrice: "100"},
		{line: "Widget/0/100", ok: true, wantName: "Widget", wantQty: 1, wantPrice: "100"},
		{line: "Widget/-2/300", ok: true, wantName: "Widget", wantQty: -2, wantPrice: "300"},
		{line: "Widget/+4/10", ok: true, wantName: "Widget", wantQty: 4, wantPrice: "10"},
		{line: "Widget/-/10", ok: true, wantName: "Widget", wantQty: 1, wantPrice: "10"},
		{line: "Widget/99999999999999999999/300", ok: true, wantName: "Widget", wantQty: math.MaxInt64, wantPrice: "300"},
		{line: "Widget/-99999999999999999999/300", ok: true, wantName: "Widget", wantQty: math.MinInt64, wantPrice: "300"},
		{line: "Widget/2/free", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "0"},
		{line: "Widget/2/1.2.3", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "1.2"},
		{line: "Widget/2/.5", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "0.5"},
		{line: "Widget/2/1,000", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "1000"},
		{line: "Widget/2/300/extra", ok: true, wantName: "Widget", wantQty: 2, wantPrice: "300"},
		{line: "Widget/2", ok: false},
		{line: "Widget", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseItemLine(tt.line)
		if ok != tt.ok {
			t.Fatalf("%q: ok = %v, want %v", tt.line, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if got.Name != tt.wantName || got.Quantity != tt.wantQty {
			t.Fatalf("%q: got %q x%d", tt.line, got.Name, got.Quantity)
		}
		if want := decimal.RequireFromString(tt.wantPrice); !got.UnitPrice.Equal(want) {
			t.Fatalf("%q: price = %s, want %s", tt.line, got.UnitPrice, want)
		}
	}
}
