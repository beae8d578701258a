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

package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkout-platform/internal/checkout/domain"
	pkgerrors "checkout-platform/pkg/errors"
)

// Schema orders 表结构；查询字段冗余存放，完整订单保存在 data（JSONB）
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	cart_id     TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	version     INTEGER NOT NULL,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_cart_id_idx ON orders (cart_id);
`

// PostgresStore PostgreSQL 实现
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接 PostgreSQL 并确保表存在
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create orders schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close 关闭连接池
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	o := order.Clone()
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	o.Version = 1
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal order: %w", ErrPersistence, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO orders (id, cart_id, customer_id, status, version, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.CartID, o.CustomerID, string(o.Status), o.Version, data, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(o.ID, 0)
		}
		return nil, fmt.Errorf("%w: insert order: %w", ErrPersistence, err)
	}
	return o, nil
}

func (s *PostgresStore) Update(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	o := order.Clone()
	expected := o.Version
	o.Version = expected + 1
	o.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal order: %w", ErrPersistence, err)
	}
	// CAS：仅当当前 version = expected 时更新
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $3, version = $4, data = $5, updated_at = $6
		 WHERE id = $1 AND version = $2`,
		o.ID, expected, string(o.Status), o.Version, data, o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: update order: %w", ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, o.ID); pkgerrors.IsNotFound(gerr) {
			return nil, notFound(o.ID)
		}
		return nil, conflict(o.ID, expected)
	}
	return o, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM orders WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "order %s", id)
		}
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", id, err)
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
