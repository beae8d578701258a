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

package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-platform/internal/checkout/domain"
)

func TestSufficient(t *testing.T) {
	inv := NewMemoryInventory(map[string]int{"a": 2, "b": 0})
	short, err := inv.Sufficient(context.Background(), []domain.LineItem{
		{SKU: "a", Kind: domain.ItemPhysical, Quantity: 1},
		{SKU: "a", Kind: domain.ItemPhysical, Quantity: 2},
		{SKU: "b", Kind: domain.ItemDigital, Quantity: 5},
		{SKU: "untracked", Kind: domain.ItemPhysical, Quantity: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, short)

	inv.SetStock("a", 3)
	short, err = inv.Sufficient(context.Background(), []domain.LineItem{{SKU: "a", Quantity: 3}})
	require.NoError(t, err)
	assert.Empty(t, short)
}
