package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// Notifier composes, sends and records tenant notifications. Every attempt is
// written to the notification log so a failed send can be replayed by hand.
type Notifier struct {
	composer   domain.MessageComposer
	mailer     domain.Mailer
	log        domain.NotificationLog
	clock      domain.Clock
	staffEmail string
	logger     *zap.Logger
}

// NewNotifier creates a notifier. An empty staffEmail disables staff alerts.
func NewNotifier(composer domain.MessageComposer, mailer domain.Mailer, log domain.NotificationLog, clock domain.Clock, staffEmail string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{composer: composer, mailer: mailer, log: log, clock: clock, staffEmail: staffEmail, logger: logger}
}

// Welcome sends the owner their credential, documents and billing summary.
func (n *Notifier) Welcome(ctx context.Context, tenantID string, notice domain.WelcomeNotice) error {
	msg, err := n.composer.Welcome(notice)
	if err != nil {
		return n.record(ctx, tenantID, domain.NotificationWelcome, notice.To, "", err)
	}
	return n.record(ctx, tenantID, domain.NotificationWelcome, notice.To, msg.Subject, n.mailer.Send(ctx, msg))
}

// StaffAlert tells internal staff about a new tenant.
func (n *Notifier) StaffAlert(ctx context.Context, notice domain.StaffNotice) error {
	if n.staffEmail == "" {
		n.logger.Debug("staff alert skipped, no staff address", zap.String("tenant_id", notice.TenantID))
		return nil
	}
	notice.To = n.staffEmail

	msg, err := n.composer.StaffAlert(notice)
	if err != nil {
		return n.record(ctx, notice.TenantID, domain.NotificationStaffAlert, notice.To, "", err)
	}
	return n.record(ctx, notice.TenantID, domain.NotificationStaffAlert, notice.To, msg.Subject, n.mailer.Send(ctx, msg))
}

// PaymentLink sends the owner a payment link opened after provisioning.
func (n *Notifier) PaymentLink(ctx context.Context, tenantID string, notice domain.PaymentLinkNotice) error {
	msg, err := n.composer.PaymentLink(notice)
	if err != nil {
		return n.record(ctx, tenantID, domain.NotificationPaymentLink, notice.To, "", err)
	}
	return n.record(ctx, tenantID, domain.NotificationPaymentLink, notice.To, msg.Subject, n.mailer.Send(ctx, msg))
}

// record logs the attempt and returns sendErr unchanged.
func (n *Notifier) record(ctx context.Context, tenantID string, kind domain.NotificationKind, recipient, subject string, sendErr error) error {
	rec := domain.NotificationRecord{
		ID:        newID(),
		TenantID:  tenantID,
		Kind:      kind,
		Recipient: recipient,
		Subject:   subject,
		Status:    domain.NotificationSent,
		CreatedAt: n.clock.Now(),
	}
	if sendErr != nil {
		rec.Status = domain.NotificationFailed
		rec.Error = sendErr.Error()
		n.logger.Error("notification failed",
			zap.String("tenant_id", tenantID),
			zap.String("kind", string(kind)),
			zap.String("recipient", recipient),
			zap.Error(sendErr),
		)
	}

	// Recorded even when the send timed out.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := n.log.RecordNotification(logCtx, rec); err != nil {
		n.logger.Warn("recording notification failed",
			zap.String("tenant_id", tenantID),
			zap.String("recipient", recipient),
			zap.Error(err),
		)
	}

	return sendErr
}
