package checkout

import (
	"fmt"
	"time"
)

// Payment method labels shown on the reply keyboard.
const (
	LabelBlik     = "BLIK"
	LabelCrypto   = "Crypto"
	LabelTransfer = "Transfer"
)

const (
	msgOrderForm = "Paste the order form, one field per line:\n" +
		"Name\nCity\nE-mail\nPhone\n" +
		"Items, each on its own line as name/quantity/price"
	msgChooseMethod   = "Choose a payment method using the keyboard below."
	msgNoActiveOrder  = "You have no active order. Send /order to start."
	msgNoOperator     = "No operator is available right now. Choose another payment method or try again later."
	msgBadCode        = "A BLIK code has exactly 6 digits. Try again."
	msgCodeRejected   = "This order can no longer accept a BLIK code. Send /order to start a new one."
	msgConfirmUsage   = "Usage: /confirm_blik <orderId>"
	msgOrderNotFound  = "No such order."
	msgNotAssigned    = "You are not the operator assigned to this order."
	msgAvailable      = "You are now available as an operator."
	msgUnavailable    = "You are now unavailable as an operator."
	msgInternalError  = "Something went wrong on our side. Please try again later."
	msgCancelled      = "Order dialogue cancelled. Send /order to start again."
	msgIdleHint       = "Send /order to place an order or /start for help."
	msgNothingToClear = "There is nothing to cancel."
)

func minutes(d time.Duration) int { return int(d / time.Minute) }

func hours(d time.Duration) int { return int(d / time.Hour) }

func (c *Controller) msgStart() string {
	return fmt.Sprintf("Welcome! Send /order to place an order.\n"+
		"Minimum order: %s %s.\n"+
		"Operators: /available to receive BLIK codes, /unavailable to stop.",
		c.settings.MinTotal.StringFixed(0), c.settings.Currency)
}

func (c *Controller) msgBelowMinimum(form OrderForm) string {
	short := c.settings.MinTotal.Sub(form.Total)
	return fmt.Sprintf("Your order totals %s %s; the minimum order is %s %s (%s %s short). "+
		"Add more items and send the whole form again.",
		form.Total.StringFixed(2), c.settings.Currency,
		c.settings.MinTotal.StringFixed(2), c.settings.Currency,
		short.StringFixed(2), c.settings.Currency)
}

func (c *Controller) msgReserved(orderID string, form OrderForm) string {
	return fmt.Sprintf("Order reserved (ID: %s). Total: %s %s.\nChoose a payment method:",
		orderID, form.Total.StringFixed(2), c.settings.Currency)
}

func (c *Controller) msgAskCode() string {
	return fmt.Sprintf("Send your 6-digit BLIK code now (digits only). "+
		"It will be forwarded to the assigned operator; the reservation is held for %d minutes.",
		minutes(c.settings.ReservationWindow))
}

func (c *Controller) msgOperatorCode(orderID, code string) string {
	return fmt.Sprintf("New BLIK code for order %s: %s\nAfter completing the payment confirm with: /confirm_blik %s",
		orderID, code, orderID)
}

func (c *Controller) msgCodeForwarded() string {
	return fmt.Sprintf("Your BLIK code was forwarded to an operator, who has %d minutes to use it. "+
		"You will receive shipping details after confirmation.",
		minutes(c.settings.ReservationWindow))
}

func (c *Controller) msgManualMethod(label, orderID string) string {
	return fmt.Sprintf("%s payments for order %s are settled manually; our staff will contact you. "+
		"You can still choose %s instead.", label, orderID, LabelBlik)
}

func msgConfirmed(orderID string) string {
	return fmt.Sprintf("Confirmed: order %s is marked as PAID.", orderID)
}

func msgAlreadyPaid(orderID string) string {
	return fmt.Sprintf("Order %s is already marked as paid.", orderID)
}

func msgNoCodeYet(orderID string) string {
	return fmt.Sprintf("Order %s has no BLIK code to confirm yet.", orderID)
}

func (c *Controller) msgPaymentConfirmed() string {
	return fmt.Sprintf("Payment confirmed. Shipping details will follow within %d hours.",
		hours(c.settings.ShippingSLA))
}
