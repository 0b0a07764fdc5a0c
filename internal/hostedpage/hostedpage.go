// Package hostedpage renders the small HTML pages that hand a shopper over
// to a gateway's hosted payment page.
package hostedpage

import (
	"html/template"
	"io"
)

var formPostTmpl = template.Must(template.New("formpost").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Redirecting to payment</title>
</head>
<body onload="document.forms[0].submit()">
	<form method="post" action="{{.Action}}">
		<input type="hidden" name="token" value="{{.Token}}">
		<noscript><button type="submit">Continue to payment</button></noscript>
	</form>
</body>
</html>
`))

// RenderFormPost writes a page that immediately posts token to checkoutURL.
// Hosted pages only accept the token as a form field, never in the URL.
func RenderFormPost(w io.Writer, checkoutURL, token string) error {
	return formPostTmpl.Execute(w, struct {
		Action string
		Token  string
	}{checkoutURL, token})
}

var dropInTmpl = template.Must(template.New("dropin").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Payment</title>
	<script src="https://js.braintreegateway.com/web/dropin/1.43.0/js/dropin.min.js"></script>
	<style>
		body { font-family: Arial, sans-serif; max-width: 480px; margin: 40px auto; }
		button { width: 100%; padding: 12px; font-size: 16px; }
	</style>
</head>
<body>
	<div id="dropin-container"></div>
	<form id="charge" method="post" action="{{.ChargeURL}}">
		<input type="hidden" name="referenceId" value="{{.ReferenceID}}">
		<input type="hidden" name="nonce" id="nonce">
		<button type="submit">Pay</button>
	</form>
	<script>
		const form = document.getElementById("charge");
		braintree.dropin.create({
			authorization: {{.Token}},
			container: "#dropin-container"
		}, function (err, instance) {
			if (err) { console.error(err); return; }
			form.addEventListener("submit", function (event) {
				event.preventDefault();
				instance.requestPaymentMethod(function (err, payload) {
					if (err) { console.error(err); return; }
					document.getElementById("nonce").value = payload.nonce;
					form.submit();
				});
			});
		});
	</script>
</body>
</html>
`))

// RenderDropIn writes the braintree drop-in page for one transaction.
func RenderDropIn(w io.Writer, token, referenceID, chargeURL string) error {
	return dropInTmpl.Execute(w, struct {
		Token       string
		ReferenceID string
		ChargeURL   string
	}{token, referenceID, chargeURL})
}
