package service

import (
	"sync"

	"procurement/internal/model"
	"procurement/internal/quotation"

	"github.com/google/uuid"
)

// LiveDrafts holds the draft behind each quotation being previewed, so a preview is
// compared with the previous preview rather than with the stored total. Entries are
// dropped when the quotation is saved or its RFP is reseeded, awarded or cancelled.
type LiveDrafts struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]liveDraft
}

type liveDraft struct {
	rfpID uuid.UUID
	draft *quotation.Draft
}

func NewLiveDrafts() *LiveDrafts {
	return &LiveDrafts{drafts: make(map[uuid.UUID]liveDraft)}
}

// update applies edited to the live draft of q, starting one from the stored rows when
// q has none yet. It returns the new total, whether it moved and the draft's rows.
func (l *LiveDrafts) update(q *model.Quotation, pricing Pricing, edited quotation.Quotation) (quotation.Total, bool, quotation.Quotation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.drafts[q.ID]
	if !ok {
		entry = liveDraft{
			rfpID: q.RFPID,
			draft: quotation.NewDraft(pricing.Engine, toEngineQuotation(*q), pricing.Epsilon),
		}
		l.drafts[q.ID] = entry
	}
	total, changed := entry.draft.Update(edited)
	return total, changed, entry.draft.Quotation()
}

// Drop forgets the live draft of one quotation.
func (l *LiveDrafts) Drop(quotationID uuid.UUID) {
	l.mu.Lock()
	delete(l.drafts, quotationID)
	l.mu.Unlock()
}

// DropRFP forgets the live drafts of every quotation of an RFP.
func (l *LiveDrafts) DropRFP(rfpID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.drafts {
		if entry.rfpID == rfpID {
			delete(l.drafts, id)
		}
	}
}

// Len is the number of quotations with a live draft.
func (l *LiveDrafts) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.drafts)
}
