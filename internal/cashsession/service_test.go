package cashsession_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"pdv/internal/cashsession"
	sessionstore "pdv/internal/cashsession/store"
	dErrors "pdv/pkg/domain-errors"
)

// =============================================================================
// Cash Session Service Suite
// =============================================================================
// Justification for unit tests: the session state machine and the expected
// balance fold are the money-handling core; both get exercised against the
// in-memory store, which carries the same uniqueness contract as PostgreSQL.

type SessionServiceSuite struct {
	suite.Suite
	store   *sessionstore.InMemoryStore
	service *cashsession.Service
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.store = sessionstore.NewInMemoryStore()
	s.service = cashsession.NewService(s.store, nil)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (s *SessionServiceSuite) TestOpen() {
	ctx := context.Background()

	s.Run("opens a session", func() {
		session, err := s.service.Open(ctx, "reg-1", dec("100.00"), "op-1")
		s.Require().NoError(err)
		s.Equal(cashsession.StatusOpen, session.Status)
		s.Equal("reg-1", session.RegisterID)
		s.True(session.OpeningBalance.Equal(dec("100.00")))
	})

	s.Run("second open on the same register conflicts", func() {
		_, err := s.service.Open(ctx, "reg-1", dec("50.00"), "op-2")
		s.Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	s.Run("another register opens independently", func() {
		_, err := s.service.Open(ctx, "reg-2", dec("0"), "op-1")
		s.NoError(err)
	})

	s.Run("validation", func() {
		_, err := s.service.Open(ctx, "", dec("10"), "op-1")
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))

		_, err = s.service.Open(ctx, "reg-3", dec("-1"), "op-1")
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})
}

func (s *SessionServiceSuite) TestCurrent() {
	ctx := context.Background()

	_, err := s.service.Current(ctx, "reg-none")
	s.Error(err)
	s.Equal(dErrors.CodeSessionNotOpen, dErrors.CodeOf(err))

	opened, err := s.service.Open(ctx, "reg-1", dec("20"), "op-1")
	s.Require().NoError(err)

	current, err := s.service.Current(ctx, "reg-1")
	s.Require().NoError(err)
	s.Equal(opened.ID, current.ID)
}

func (s *SessionServiceSuite) TestRecordMovement() {
	ctx := context.Background()
	_, err := s.service.Open(ctx, "reg-1", dec("100"), "op-1")
	s.Require().NoError(err)

	s.Run("appends to the open session", func() {
		m, err := s.service.RecordMovement(ctx, "reg-1", cashsession.MovementCashIn, dec("15.00"), "change float", "op-1")
		s.Require().NoError(err)
		s.Equal(cashsession.MovementCashIn, m.Type)
		s.Equal("op-1", m.Operator)
	})

	s.Run("rejects unknown type", func() {
		_, err := s.service.RecordMovement(ctx, "reg-1", cashsession.MovementType("loan"), dec("5"), "", "op-1")
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("rejects non-positive amount", func() {
		_, err := s.service.RecordMovement(ctx, "reg-1", cashsession.MovementCashOut, decimal.Zero, "", "op-1")
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("requires an open session", func() {
		_, err := s.service.RecordMovement(ctx, "reg-closed", cashsession.MovementSale, dec("5"), "", "op-1")
		s.Equal(dErrors.CodeSessionNotOpen, dErrors.CodeOf(err))
	})
}

func (s *SessionServiceSuite) TestClose() {
	ctx := context.Background()
	_, err := s.service.Open(ctx, "reg-1", dec("100.00"), "op-1")
	s.Require().NoError(err)

	_, err = s.service.RecordMovement(ctx, "reg-1", cashsession.MovementSale, dec("50.00"), "sale-1", "op-1")
	s.Require().NoError(err)
	_, err = s.service.RecordMovement(ctx, "reg-1", cashsession.MovementCashOut, dec("20.00"), "supplier", "op-1")
	s.Require().NoError(err)

	s.Run("computes expected balance and difference", func() {
		closed, err := s.service.Close(ctx, "reg-1", dec("130.00"), "end of shift")
		s.Require().NoError(err)
		s.Equal(cashsession.StatusClosed, closed.Status)
		// 100 + 50 - 20
		s.True(closed.ExpectedBalance.Equal(dec("130.00")))
		s.True(closed.Difference.IsZero())
		s.NotNil(closed.ClosedAt)
	})

	s.Run("closed register has no current session", func() {
		_, err := s.service.Current(ctx, "reg-1")
		s.Equal(dErrors.CodeSessionNotOpen, dErrors.CodeOf(err))
	})

	s.Run("register can reopen after close", func() {
		_, err := s.service.Open(ctx, "reg-1", dec("130.00"), "op-2")
		s.NoError(err)
	})
}

func (s *SessionServiceSuite) TestCloseWithShortage() {
	ctx := context.Background()
	_, err := s.service.Open(ctx, "reg-1", dec("100.00"), "op-1")
	s.Require().NoError(err)
	_, err = s.service.RecordMovement(ctx, "reg-1", cashsession.MovementSale, dec("40.00"), "sale-1", "op-1")
	s.Require().NoError(err)

	closed, err := s.service.Close(ctx, "reg-1", dec("135.00"), "")
	s.Require().NoError(err)
	s.True(closed.ExpectedBalance.Equal(dec("140.00")))
	s.True(closed.Difference.Equal(dec("-5.00")))
}

func (s *SessionServiceSuite) TestCancel() {
	ctx := context.Background()
	_, err := s.service.Open(ctx, "reg-1", dec("10.00"), "op-1")
	s.Require().NoError(err)

	cancelled, err := s.service.Cancel(ctx, "reg-1", "drawer jammed")
	s.Require().NoError(err)
	s.Equal(cashsession.StatusCancelled, cancelled.Status)
	s.Equal("drawer jammed", cancelled.Notes)

	_, err = s.service.Current(ctx, "reg-1")
	s.Equal(dErrors.CodeSessionNotOpen, dErrors.CodeOf(err))
}

func (s *SessionServiceSuite) TestMovementsOrdering() {
	ctx := context.Background()
	session, err := s.service.Open(ctx, "reg-1", dec("0"), "op-1")
	s.Require().NoError(err)

	for _, ref := range []string{"first", "second", "third"} {
		_, err := s.service.RecordMovement(ctx, "reg-1", cashsession.MovementSale, dec("1.00"), ref, "op-1")
		s.Require().NoError(err)
	}

	movements, err := s.service.Movements(ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(movements, 3)
	s.Equal("first", movements[0].Reference)
	s.Equal("third", movements[2].Reference)
}
