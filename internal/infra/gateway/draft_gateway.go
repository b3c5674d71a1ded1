package gateway

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/client"
	"github.com/pinjaman/hybrid/internal/domain"
)

var tracer = otel.Tracer("gateway")

// DraftGateway sends signed drafts and repay tuples to the server.
type DraftGateway struct {
	client *client.Client
}

func NewDraftGateway(cl *client.Client) *DraftGateway {
	return &DraftGateway{client: cl}
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	var kinded domain.KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return "error"
}

func (g *DraftGateway) SubmitBankDetails(ctx context.Context, submission pinjaman.BankDetailsSubmission) error {
	ctx, span := tracer.Start(ctx, "Draft.Gateway.SubmitBankDetails")
	defer span.End()

	var err error
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		draftSubmitDuration.WithLabelValues(outcome(err)).Observe(v)
	}))
	err = g.client.SubmitBankDetails(ctx, submission)
	timer.ObserveDuration()
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (g *DraftGateway) SaveRepayReference(ctx context.Context, ref domain.RepayReference) error {
	ctx, span := tracer.Start(ctx, "Draft.Gateway.SaveRepayReference")
	defer span.End()

	err := g.client.SaveRepayReference(ctx, ref)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (g *DraftGateway) AttachRepayTx(ctx context.Context, hash, txHash string) error {
	ctx, span := tracer.Start(ctx, "Draft.Gateway.AttachRepayTx")
	defer span.End()

	err := g.client.AttachRepayTx(ctx, hash, txHash)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
