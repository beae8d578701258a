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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-platform/internal/checkout/domain"
	"checkout-platform/pkg/log"
	"checkout-platform/pkg/metrics"
	"checkout-platform/pkg/tracing"
)

// Coordinator 发起正向支付操作，并把每类交易与其补偿配对：
// Reserve→Cancel，Charge→ReverseCharge，Modify→以最新预授权 Cancel，Credit 无补偿。
// 所有方法返回新建的不可变记录（失败时记录状态为 FAILED 且同时返回 *TransactionError）。
type Coordinator struct {
	provider Provider
	caps     Capabilities
	logger   *log.Logger
	now      func() time.Time
}

// NewCoordinator 创建协调器，能力取自网关构造时的声明
func NewCoordinator(provider Provider, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Coordinator{
		provider: provider,
		caps:     provider.Capabilities(),
		logger:   logger,
		now:      time.Now,
	}
}

// Capabilities 网关能力
func (c *Coordinator) Capabilities() Capabilities {
	return c.caps
}

// Reserve 预授权
func (c *Coordinator) Reserve(ctx context.Context, chainKey, instrumentID string, amount decimal.Decimal, currency string) (*domain.PaymentRecord, error) {
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxReserve,
		ChainKey:     chainKey,
		Amount:       amount,
		Currency:     currency,
		InstrumentID: instrumentID,
	}, "")
}

// Modify 修改预授权金额；返回的记录取代 res 成为该链后续操作的因果输入
func (c *Coordinator) Modify(ctx context.Context, res Reservation, amount decimal.Decimal) (*domain.PaymentRecord, error) {
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxModifyReserve,
		ChainKey:     res.ChainKey,
		Amount:       amount,
		Currency:     res.Currency,
		InstrumentID: res.InstrumentID,
		ProviderData: res.Data,
	}, res.RecordID)
}

// Cancel 撤销预授权
func (c *Coordinator) Cancel(ctx context.Context, res Reservation) (*domain.PaymentRecord, error) {
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxCancelReserve,
		ChainKey:     res.ChainKey,
		Amount:       res.Amount,
		Currency:     res.Currency,
		InstrumentID: res.InstrumentID,
		ProviderData: res.Data,
	}, res.RecordID)
}

// Charge 按预授权扣款
func (c *Coordinator) Charge(ctx context.Context, res Reservation, amount decimal.Decimal) (*domain.PaymentRecord, error) {
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxCharge,
		ChainKey:     res.ChainKey,
		Amount:       amount,
		Currency:     res.Currency,
		InstrumentID: res.InstrumentID,
		ProviderData: res.Data,
	}, res.RecordID)
}

// Sale 无预授权直接扣款（网关不支持 Reserve 时使用）
func (c *Coordinator) Sale(ctx context.Context, chainKey, instrumentID string, amount decimal.Decimal, currency string) (*domain.PaymentRecord, error) {
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxCharge,
		ChainKey:     chainKey,
		Amount:       amount,
		Currency:     currency,
		InstrumentID: instrumentID,
	}, "")
}

// ReverseCharge 冲正扣款
func (c *Coordinator) ReverseCharge(ctx context.Context, ch Charge) (*domain.PaymentRecord, error) {
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxReverseCharge,
		ChainKey:     ch.ChainKey,
		Amount:       ch.Amount,
		Currency:     ch.Currency,
		InstrumentID: ch.InstrumentID,
		ProviderData: ch.Data,
	}, ch.RecordID)
}

// Credit 退款，amount 不得超过扣款金额
func (c *Coordinator) Credit(ctx context.Context, ch Charge, amount decimal.Decimal) (*domain.PaymentRecord, error) {
	if amount.GreaterThan(ch.Amount) {
		return nil, &TransactionError{
			Type:     domain.TxCredit,
			ChainKey: ch.ChainKey,
			Message:  fmt.Sprintf("credit %s exceeds charged amount %s", amount, ch.Amount),
		}
	}
	return c.submit(ctx, TransactionRequest{
		Type:         domain.TxCredit,
		ChainKey:     ch.ChainKey,
		Amount:       amount,
		Currency:     ch.Currency,
		InstrumentID: ch.InstrumentID,
		ProviderData: ch.Data,
	}, ch.RecordID)
}

// Compensate 按时间倒序补偿 records 中类型属于 types 的已批准记录，返回新建的补偿记录。
//   - RESERVE / MODIFY_RESERVE：每条预授权链只撤销一次，使用链上最新的预授权数据；
//     已撤销或已被扣款消费的链跳过
//   - CHARGE：未冲正的扣款执行 ReverseCharge
//   - CREDIT 与补偿类型本身没有补偿
//
// 已补偿的记录会被跳过，重复调用是安全的；records 为空时不调用网关。
// 单条补偿失败不会中止其余补偿，所有失败合并返回。
func (c *Coordinator) Compensate(ctx context.Context, records []*domain.PaymentRecord, types ...domain.TransactionType) ([]*domain.PaymentRecord, error) {
	if len(records) == 0 || len(types) == 0 {
		return nil, nil
	}
	wanted := make(map[domain.TransactionType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	closedChains := make(map[string]bool)
	reversed := make(map[string]bool)
	for _, r := range records {
		if !r.Approved() {
			continue
		}
		switch r.Type {
		case domain.TxCancelReserve:
			closedChains[r.ChainKey] = true
		case domain.TxCharge:
			// 已扣款的预授权链由 CHARGE 的补偿负责
			closedChains[r.ChainKey] = true
		case domain.TxReverseCharge:
			reversed[r.ParentID] = true
		}
	}

	var created []*domain.PaymentRecord
	var errs []error
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if !r.Approved() || !wanted[r.Type] {
			continue
		}
		var (
			rec *domain.PaymentRecord
			err error
		)
		switch r.Type {
		case domain.TxReserve, domain.TxModifyReserve:
			if closedChains[r.ChainKey] {
				continue
			}
			closedChains[r.ChainKey] = true
			res, rerr := ReservationFrom(r)
			if rerr != nil {
				errs = append(errs, &TransactionError{Type: domain.TxCancelReserve, ChainKey: r.ChainKey, Err: rerr})
				continue
			}
			rec, err = c.Cancel(ctx, res)
		case domain.TxCharge:
			if reversed[r.ID] {
				continue
			}
			reversed[r.ID] = true
			ch, cerr := ChargeFrom(r)
			if cerr != nil {
				errs = append(errs, &TransactionError{Type: domain.TxReverseCharge, ChainKey: r.ChainKey, Err: cerr})
				continue
			}
			rec, err = c.ReverseCharge(ctx, ch)
		default:
			c.logger.Debug("no compensation for transaction type", "type", r.Type, "record", r.ID)
			continue
		}
		if rec != nil {
			created = append(created, rec)
		}
		if err != nil {
			c.logger.Error("payment compensation failed", "type", r.Type, "record", r.ID, "chain", r.ChainKey, "error", err)
			errs = append(errs, err)
		}
	}
	return created, errors.Join(errs...)
}

// submit 调用网关并生成记录
func (c *Coordinator) submit(ctx context.Context, req TransactionRequest, parentID string) (*domain.PaymentRecord, error) {
	if !c.caps.Supports(req.Type) {
		return nil, &TransactionError{Type: req.Type, ChainKey: req.ChainKey, Err: ErrUnsupported}
	}
	req.ID = uuid.New().String()

	ctx, span := tracing.StartPaymentSpan(ctx, string(req.Type), req.ChainKey)
	resp, err := c.provider.Submit(ctx, req)

	rec := &domain.PaymentRecord{
		ID:           req.ID,
		ChainKey:     req.ChainKey,
		Type:         req.Type,
		Status:       domain.PaymentApproved,
		Amount:       req.Amount,
		Currency:     req.Currency,
		InstrumentID: req.InstrumentID,
		ProviderData: resp.ProviderData,
		ParentID:     parentID,
		CreatedAt:    c.now(),
	}
	var txErr *TransactionError
	switch {
	case err != nil:
		txErr = &TransactionError{Type: req.Type, ChainKey: req.ChainKey, Err: err}
	case resp.Status != domain.PaymentApproved:
		txErr = &TransactionError{Type: req.Type, ChainKey: req.ChainKey, Message: resp.Message, Err: ErrDeclined}
	}
	metricStatus := "approved"
	if txErr != nil {
		rec.Status = domain.PaymentFailed
		rec.Error = txErr.Error()
		metricStatus = "failed"
	}
	metrics.PaymentTransactionTotal.WithLabelValues(string(req.Type), metricStatus).Inc()

	if txErr != nil {
		tracing.EndSpan(span, txErr)
		c.logger.Warn("payment transaction failed",
			"type", req.Type, "chain", req.ChainKey, "amount", req.Amount.String(), "error", txErr)
		return rec, txErr
	}
	tracing.EndSpan(span, nil)
	c.logger.Debug("payment transaction approved", "type", req.Type, "chain", req.ChainKey, "record", rec.ID)
	return rec, nil
}
