package handler

import "net/http"

// Index handles GET /.
func Index(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"service": "randgate",
		"status":  "running",
	})
}

// PaymentSuccess handles GET /success, where the processor sends the payer
// after checkout. Access is only granted by the IPN, not by this page.
func PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"message": "Payment submitted. You will be notified in Telegram once it is confirmed.",
	})
}

// PaymentCancel handles GET /cancel.
func PaymentCancel(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"message": "Payment cancelled. Use /pay in Telegram to try again.",
	})
}
