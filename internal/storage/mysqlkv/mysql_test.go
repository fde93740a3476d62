package mysqlkv

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

func TestConnErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 1062: Duplicate entry"), false},
		{mysql.ErrInvalidConn, true},
		{fmt.Errorf("query: %w", mysql.ErrInvalidConn), true},
		{errors.New("dial tcp: operation timed out"), true},
	}
	for _, c := range cases {
		if got := connErr(c.err); got != c.want {
			t.Fatalf("connErr(%v): expected %v, got=%v", c.err, c.want, got)
		}
	}
}

func TestRetry_OnlyOnConnErr(t *testing.T) {
	s := &Store{log: zerolog.Nop()}

	calls := 0
	_ = s.retry(func() error {
		calls++
		return errors.New("syntax error")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got=%d", calls)
	}

	calls = 0
	err := s.retry(func() error {
		calls++
		if calls == 1 {
			return mysql.ErrInvalidConn
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected retry to succeed, calls=%d err=%v", calls, err)
	}
}
