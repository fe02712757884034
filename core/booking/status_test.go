package booking

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{Pending, Confirmed},
		{Pending, Cancelled},
		{Confirmed, Ongoing},
		{Confirmed, Cancelled},
		{Ongoing, Completed},
	}

	for _, tr := range allowed {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Status }{
		{Pending, Ongoing},
		{Pending, Completed},
		{Ongoing, Cancelled},
		{Ongoing, Pending},
		{Completed, Ongoing},
		{Completed, Cancelled},
		{Cancelled, Pending},
		{Cancelled, Confirmed},
	}

	for _, tr := range denied {
		if tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be rejected", tr.from, tr.to)
		}
	}
}

func TestCanCancel(t *testing.T) {
	cancellable := map[Status]bool{
		Pending:   true,
		Confirmed: true,
		Ongoing:   false,
		Completed: false,
		Cancelled: false,
	}

	for s, want := range cancellable {
		if got := s.CanCancel(); got != want {
			t.Errorf("CanCancel(%s) = %v, want %v", s, got, want)
		}
	}
}
