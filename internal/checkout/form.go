package checkout

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	defaultCustomerName = "Customer"
	// headerLines is the number of contact lines (name, city, e-mail, phone)
	// preceding the item lines in a full form.
	headerLines = 4
)

// Item is one well-formed "name/quantity/price" line.
type Item struct {
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity times unit price.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// OrderForm is the result of parsing a pasted order form.
type OrderForm struct {
	Name      string
	ItemsText string
	Items     []Item
	Total     decimal.Decimal
}

// ParseOrderForm parses the free-form order text. Lines that do not carry at
// least three "/"-separated fields are kept in ItemsText but add nothing to
// the total.
func ParseOrderForm(raw, displayName string) OrderForm {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	form := OrderForm{Name: displayName, Total: decimal.Zero}
	if len(lines) > 0 {
		form.Name = lines[0]
	}
	if strings.TrimSpace(form.Name) == "" {
		form.Name = defaultCustomerName
	}

	var itemLines []string
	if len(lines) > headerLines {
		itemLines = lines[headerLines:]
	} else if len(lines) > 1 {
		itemLines = lines[1:]
	}
	form.ItemsText = strings.Join(itemLines, "\n")

	for _, l := range itemLines {
		item, ok := ParseItemLine(l)
		if !ok {
			continue
		}
		form.Items = append(form.Items, item)
		form.Total = form.Total.Add(item.Subtotal())
	}
	return form
}

// ParseItemLine parses "name / quantity / unit price". Quantity is the
// leading signed integer and falls back to 1 when it has no digits or is 0;
// negative quantities are kept. The price keeps only digits and dots and
// falls back to 0.
func ParseItemLine(line string) (Item, bool) {
	parts := strings.Split(line, "/")
	if len(parts) < 3 {
		return Item{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	qty, ok := leadingInt(parts[1])
	if !ok || qty == 0 {
		qty = 1
	}
	return Item{
		Name:      parts[0],
		Quantity:  qty,
		UnitPrice: parsePrice(parts[2]),
	}, true
}

// leadingInt parses the signed integer prefix of s. Values outside int64
// saturate at the nearest bound.
func leadingInt(s string) (int64, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return n, true
}

func parsePrice(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	// Longest prefix of the form digits[.digits].
	end, dot := 0, false
	for end < len(cleaned) {
		if cleaned[end] == '.' {
			if dot {
				break
			}
			dot = true
		}
		end++
	}
	num := strings.TrimSuffix(cleaned[:end], ".")
	if strings.HasPrefix(num, ".") {
		num = "0" + num
	}
	if num == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero
	}
	return d
}
