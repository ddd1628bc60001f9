// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicySucceedsEventually(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyExhausts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicyStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	err := p.Do(ctx, func() error {
		t.Fatal("fn should not be called with an already-cancelled context")
		return nil
	})
	require.Error(t, err)
}
