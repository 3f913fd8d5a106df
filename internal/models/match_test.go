package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatchNormalizesOrder(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name          string
		userID, other string
	}{
		{"already ordered", "aaa", "bbb"},
		{"reversed", "bbb", "aaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatch("m1", tt.userID, tt.other, "p1", now)
			require.NoError(t, err)
			assert.Equal(t, "aaa", m.UserAID)
			assert.Equal(t, "bbb", m.UserBID)
			assert.Equal(t, MatchPending, m.Status())
			assert.False(t, m.AAgreed())
			assert.False(t, m.BAgreed())
			assert.Nil(t, m.ContactSharedAt())
		})
	}
}

func TestNewMatchRejectsSameUser(t *testing.T) {
	_, err := NewMatch("m1", "u1", "u1", "p1", time.Now())
	assert.ErrorIs(t, err, ErrSameUser)
}

func TestAgreeTransitions(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m, _ := NewMatch("m1", "bbb", "aaa", "p1", created)

	side, err := m.Agree("bbb", created.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SideB, side)
	assert.Equal(t, MatchPending, m.Status())
	assert.False(t, m.AAgreed())
	assert.True(t, m.BAgreed())

	_, err = m.Agree("bbb", created.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyAgreed, "second agree by same user")

	shared := created.Add(3 * time.Minute)
	_, err = m.Agree("aaa", shared)
	require.NoError(t, err)
	assert.Equal(t, MatchBothAgreed, m.Status())
	require.NotNil(t, m.ContactSharedAt())
	assert.True(t, m.ContactSharedAt().Equal(shared))

	_, err = m.Agree("aaa", shared)
	assert.ErrorIs(t, err, ErrAlreadyAgreed, "agree after both agreed")
	_, err = m.Agree("zzz", shared)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestAgreeOnRejectedMatch(t *testing.T) {
	m, err := RestoreMatch("m1", "aaa", "bbb", "p1", MatchRejected, false, false, time.Now(), nil)
	require.NoError(t, err)
	_, err = m.Agree("aaa", time.Now())
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestRestoreMatchChecksInvariants(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		a, b    string
		status  MatchStatus
		aAgreed bool
		bAgreed bool
		shared  *time.Time
		wantErr bool
	}{
		{"pending none", "a", "b", MatchPending, false, false, nil, false},
		{"pending one", "a", "b", MatchPending, true, false, nil, false},
		{"pending both flags", "a", "b", MatchPending, true, true, nil, true},
		{"both agreed", "a", "b", MatchBothAgreed, true, true, &now, false},
		{"both agreed missing flag", "a", "b", MatchBothAgreed, true, false, &now, true},
		{"both agreed missing time", "a", "b", MatchBothAgreed, true, true, nil, true},
		{"reversed pair", "b", "a", MatchPending, false, false, nil, true},
		{"same user", "a", "a", MatchPending, false, false, nil, true},
		{"unknown status", "a", "b", MatchStatus("removed"), false, false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RestoreMatch("m1", tt.a, tt.b, "p1", tt.status, tt.aAgreed, tt.bAgreed, now, tt.shared)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInconsistent)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCounterpart(t *testing.T) {
	m, _ := NewMatch("m1", "aaa", "bbb", "p1", time.Now())

	got, ok := m.Counterpart("aaa")
	assert.True(t, ok)
	assert.Equal(t, "bbb", got)

	got, ok = m.Counterpart("bbb")
	assert.True(t, ok)
	assert.Equal(t, "aaa", got)

	_, ok = m.Counterpart("ccc")
	assert.False(t, ok, "Counterpart of outsider should fail")
}
