// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/internal/checkout/pipeline"
)

var ten = decimal.NewFromInt(10)

func newTestCoordinator(rules ...DeclineRule) (*Coordinator, *MemoryGateway) {
	gw := NewMemoryGateway(FullCapabilities(), rules...)
	return NewCoordinator(gw, nil), gw
}

func TestCompensate_EmptyRecordsMakesNoCall(t *testing.T) {
	c, gw := newTestCoordinator()
	created, err := c.Compensate(context.Background(), nil, domain.TxReserve, domain.TxCharge)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, gw.Requests())
}

func TestCompensate_ReserveCancelledOnce(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestCoordinator()

	r1, err := c.Reserve(ctx, "s1", "card-1", ten, "USD")
	require.NoError(t, err)
	res, err := ReservationFrom(r1)
	require.NoError(t, err)
	r2, err := c.Modify(ctx, res, decimal.NewFromInt(12))
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ParentID)

	records := []*domain.PaymentRecord{r1, r2}
	created, err := c.Compensate(ctx, records, domain.TxReserve, domain.TxModifyReserve)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, domain.TxCancelReserve, created[0].Type)
	assert.Equal(t, r2.ID, created[0].ParentID, "cancel must use the latest reservation")
	assert.True(t, created[0].Approved())
	assert.Equal(t, 0, gw.OpenAuthorizations())

	// 再次补偿为幂等
	records = append(records, created...)
	again, err := c.Compensate(ctx, records, domain.TxReserve, domain.TxModifyReserve)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 1, gw.CountType(domain.TxCancelReserve))
}

func TestCompensate_FiltersByType(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestCoordinator()

	reserve, err := c.Reserve(ctx, "s1", "card-1", ten, "USD")
	require.NoError(t, err)
	sale, err := c.Sale(ctx, "s2", "card-1", ten, "USD")
	require.NoError(t, err)

	created, err := c.Compensate(ctx, []*domain.PaymentRecord{reserve, sale}, domain.TxCharge)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, domain.TxReverseCharge, created[0].Type)
	assert.Equal(t, sale.ID, created[0].ParentID)
	assert.Equal(t, 0, gw.CountType(domain.TxCancelReserve))
}

func TestCompensate_NewestFirst(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestCoordinator()

	a, _ := c.Reserve(ctx, "a", "card-1", ten, "USD")
	b, _ := c.Reserve(ctx, "b", "card-1", ten, "USD")
	_, err := c.Compensate(ctx, []*domain.PaymentRecord{a, b}, domain.TxReserve)
	require.NoError(t, err)

	var chains []string
	for _, r := range gw.Requests() {
		if r.Type == domain.TxCancelReserve {
			chains = append(chains, r.ChainKey)
		}
	}
	assert.Equal(t, []string{"b", "a"}, chains)
}

func TestCompensate_SkipsChargedChainAndCredit(t *testing.T) {
	ctx := context.Background()
	c, gw := newTestCoordinator()

	r, _ := c.Reserve(ctx, "s1", "card-1", ten, "USD")
	res, _ := ReservationFrom(r)
	ch, err := c.Charge(ctx, res, ten)
	require.NoError(t, err)
	chg, _ := ChargeFrom(ch)
	cr, err := c.Credit(ctx, chg, decimal.NewFromInt(3))
	require.NoError(t, err)

	created, err := c.Compensate(ctx, []*domain.PaymentRecord{r, ch, cr},
		domain.TxReserve, domain.TxCharge, domain.TxCredit)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, domain.TxReverseCharge, created[0].Type)
	assert.Equal(t, 0, gw.CountType(domain.TxCancelReserve))
}

func TestForwardDecline_ReturnsTransactionError(t *testing.T) {
	c, _ := newTestCoordinator(DeclineType(domain.TxReserve, ""))

	rec, err := c.Reserve(context.Background(), "s1", "card-1", ten, "USD")
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.PaymentFailed, rec.Status)
	assert.True(t, IsTransactionError(err))
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, pipeline.KindPayment, pipeline.Classify(pipeline.PhaseCapture, "authorize", err).Kind)
}

func TestCapabilitiesGateUnsupported(t *testing.T) {
	gw := NewMemoryGateway(Capabilities{Reserve: true})
	c := NewCoordinator(gw, nil)

	r, _ := c.Reserve(context.Background(), "s1", "card-1", ten, "USD")
	res, _ := ReservationFrom(r)
	_, err := c.Modify(context.Background(), res, decimal.NewFromInt(11))
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, 0, gw.CountType(domain.TxModifyReserve))
}

func TestCausalInputsRequireApprovedRecords(t *testing.T) {
	_, err := ReservationFrom(&domain.PaymentRecord{Type: domain.TxReserve, Status: domain.PaymentFailed})
	assert.True(t, errors.Is(err, ErrMissingCausalData))

	_, err = ChargeFrom(&domain.PaymentRecord{Type: domain.TxCharge, Status: domain.PaymentApproved})
	assert.ErrorIs(t, err, ErrMissingCausalData)

	_, err = ReservationFrom(&domain.PaymentRecord{Type: domain.TxCharge, Status: domain.PaymentApproved,
		ProviderData: domain.ProviderData{DataAuthorization: "x"}})
	assert.ErrorIs(t, err, ErrMissingCausalData)
}

func TestCreditCannotExceedCharge(t *testing.T) {
	c, gw := newTestCoordinator()
	ch, err := c.Sale(context.Background(), "s1", "card-1", ten, "USD")
	require.NoError(t, err)
	chg, _ := ChargeFrom(ch)

	_, err = c.Credit(context.Background(), chg, decimal.NewFromInt(11))
	assert.True(t, IsTransactionError(err))
	assert.Equal(t, 0, gw.CountType(domain.TxCredit))
}
