// Package email sends transactional mail over SMTP.
package email

import (
	"fmt"
	"net/smtp"
)

type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{host: host, port: port, from: from}
}

// OrderItem is one line of an order as rendered in mail bodies.
type OrderItem struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

func shortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}

// SendOrderConfirmation mails the order summary after placement.
func (s *Service) SendOrderConfirmation(to, orderID string, total float64, items []OrderItem) error {
	subject := fmt.Sprintf("Order confirmed - #%s", shortID(orderID))
	return s.send(to, subject, buildOrderConfirmationBody(orderID, total, items))
}

// SendOrderCancelled confirms a cancellation, with the wallet refund if
// one was issued.
func (s *Service) SendOrderCancelled(to, orderID string, refund float64) error {
	subject := fmt.Sprintf("Order cancelled - #%s", shortID(orderID))
	return s.send(to, subject, buildCancellationBody(orderID, refund))
}

// SendRefundNotice tells the customer a wallet credit landed.
func (s *Service) SendRefundNotice(to, orderID string, amount float64) error {
	subject := fmt.Sprintf("Refund credited to your wallet - #%s", shortID(orderID))
	return s.send(to, subject, buildRefundBody(orderID, amount))
}

// SendReturnUpdate reports the outcome of a return request.
func (s *Service) SendReturnUpdate(to, orderID, detail string) error {
	subject := fmt.Sprintf("Update on your return - #%s", shortID(orderID))
	return s.send(to, subject, buildReturnBody(orderID, detail))
}

// SendOTP mails a one-time verification code.
func (s *Service) SendOTP(to, code string) error {
	return s.send(to, "Your verification code", buildOTPBody(code))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
