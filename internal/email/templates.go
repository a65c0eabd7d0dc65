package email

import (
	"fmt"
	"strings"
)

const bodyStyle = `font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;`

func wrap(title, inner string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="%s">
	<div style="background: #2c5f2d; padding: 24px; border-radius: 8px 8px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 22px;">%s</h1>
	</div>
	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 8px 8px;">
		%s
		<hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message. If anything looks wrong, reply to this email and our support team will help.
		</p>
	</div>
</body>
</html>`, bodyStyle, title, inner)
}

func orderIDBlock(orderID string) string {
	return fmt.Sprintf(`<div style="background: #f8f9fa; padding: 12px; border-radius: 5px; margin: 16px 0;">
		<p style="margin: 0; font-size: 13px; color: #666;">Order number</p>
		<p style="margin: 4px 0 0 0; font-size: 16px; font-weight: bold; font-family: monospace;">%s</p>
	</div>`, orderID)
}

func rupees(amount float64) string {
	return fmt.Sprintf("₹%.2f", amount)
}

func buildOrderConfirmationBody(orderID string, total float64, items []OrderItem) string {
	var rows strings.Builder
	for _, item := range items {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			item.Name, item.Quantity, rupees(item.UnitPrice*float64(item.Quantity)),
		))
	}

	inner := fmt.Sprintf(`<p style="margin-top: 0;">Thank you for your order. Here is what's on its way:</p>
		%s
		<table style="width: 100%%; border-collapse: collapse; margin: 16px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 10px; text-align: left;">Title</th>
					<th style="padding: 10px; text-align: center;">Qty</th>
					<th style="padding: 10px; text-align: right;">Amount</th>
				</tr>
			</thead>
			<tbody>%s</tbody>
		</table>
		<div style="text-align: right; padding: 16px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 13px; color: #666;">Total paid/payable</span>
			<span style="font-size: 20px; font-weight: bold; color: #2c5f2d; margin-left: 8px;">%s</span>
		</div>`,
		orderIDBlock(orderID), rows.String(), rupees(total))
	return wrap("Thanks for your order", inner)
}

func buildCancellationBody(orderID string, refund float64) string {
	inner := fmt.Sprintf(`<p style="margin-top: 0;">Your order has been cancelled.</p>%s`, orderIDBlock(orderID))
	if refund > 0 {
		inner += fmt.Sprintf(`<p>%s has been credited to your wallet and can be used on your next purchase.</p>`, rupees(refund))
	}
	return wrap("Order cancelled", inner)
}

func buildRefundBody(orderID string, amount float64) string {
	inner := fmt.Sprintf(`<p style="margin-top: 0;">A refund of <strong>%s</strong> has been credited to your wallet.</p>%s`,
		rupees(amount), orderIDBlock(orderID))
	return wrap("Refund credited", inner)
}

func buildReturnBody(orderID, detail string) string {
	inner := fmt.Sprintf(`<p style="margin-top: 0;">%s</p>%s`, detail, orderIDBlock(orderID))
	return wrap("Return update", inner)
}

func buildOTPBody(code string) string {
	inner := fmt.Sprintf(`<p style="margin-top: 0;">Use this code to verify your email address. It expires in 5 minutes.</p>
		<div style="background: #f8f9fa; padding: 16px; border-radius: 5px; text-align: center; margin: 16px 0;">
			<span style="font-size: 28px; font-weight: bold; letter-spacing: 6px; font-family: monospace;">%s</span>
		</div>`, code)
	return wrap("Verify your email", inner)
}
