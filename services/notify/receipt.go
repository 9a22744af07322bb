package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/student"
)

const receiptTemplate = "payment_receipt"

type receiptData struct {
	PaymentID   string
	StudentName string
	FeeName     string
	Amount      string
	Currency    string
	Method      finance.PaymentMethod
	Reference   string
	PaidAt      string
	Status      finance.Status
}

// text renders the receipt attached to the email.
func (d receiptData) text() *bytes.Buffer {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Receipt:   %s\n", d.PaymentID)
	_, _ = fmt.Fprintf(&buf, "Student:   %s\n", d.StudentName)
	_, _ = fmt.Fprintf(&buf, "Fee:       %s\n", d.FeeName)
	_, _ = fmt.Fprintf(&buf, "Amount:    %s %s\n", d.Amount, d.Currency)
	_, _ = fmt.Fprintf(&buf, "Method:    %s\n", d.Method)
	if d.Reference != "" {
		_, _ = fmt.Fprintf(&buf, "Reference: %s\n", d.Reference)
	}
	_, _ = fmt.Fprintf(&buf, "Date:      %s\n", d.PaidAt)
	_, _ = fmt.Fprintf(&buf, "Status:    %s\n", d.Status)
	return &buf
}

// ReceiptMailer emails a receipt to the student and guardian of every recorded payment.
type ReceiptMailer struct {
	conf        *core.Config
	studentRepo student.Repository
	mailSvc     core.EmailService
}

func NewReceiptMailer(conf *core.Config, studentRepo student.Repository, mailSvc core.EmailService) *ReceiptMailer {
	return &ReceiptMailer{conf: conf, studentRepo: studentRepo, mailSvc: mailSvc}
}

// Register subscribes the mailer to the hub.
func (rm *ReceiptMailer) Register(hub *Hub) {
	hub.Subscribe(core.TopicPaymentRecorded, rm.Handle)
}

func (rm *ReceiptMailer) Handle(ctx context.Context, evt core.Event) error {
	pr, ok := evt.Payload.(finance.PaymentRecorded)
	if !ok {
		return errors.Errorf("unexpected %T payload", evt.Payload)
	}

	std, err := rm.studentRepo.GetStudent(ctx, pr.StudentFee.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	rcpts := std.Recipients()
	if len(rcpts) == 0 {
		return nil
	}

	data := receiptData{
		PaymentID:   pr.Payment.ID,
		StudentName: std.Name,
		FeeName:     pr.FeeName,
		Amount:      pr.Payment.Amount.StringFixed(2),
		Currency:    rm.conf.Currency,
		Method:      pr.Payment.Method,
		Reference:   core.StringValue(pr.Payment.Reference),
		PaidAt:      pr.Payment.PaidAt.Format(finance.DateLayout),
		Status:      pr.StudentFee.Status,
	}
	msg := &core.EmailMessage{
		Subject:      "Payment receipt",
		TemplateName: receiptTemplate,
		TemplateData: data,
	}
	for _, addr := range rcpts {
		msg.To = append(msg.To, mail.Address{Address: addr})
	}
	if err := msg.Attach(data.text(), "receipt-"+pr.Payment.ID+".txt", "text/plain"); err != nil {
		return errors.Wrap(err, "attaching receipt")
	}
	rm.mailSvc.SendMessages(msg)
	return nil
}
