package service

import (
	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/store"
)

// StoreSink persists worker output through the store's windowed logs.
type StoreSink struct {
	billing *store.BillingRepository
	events  *store.EventRepository
}

func NewStoreSink(s *store.Store) *StoreSink {
	return &StoreSink{billing: s.Billing(), events: s.Events()}
}

func (s *StoreSink) SaveBilling(recs []billing.Record) error {
	return s.billing.AppendAll(recs)
}

func (s *StoreSink) SaveAlerts(alerts []alert.Alert) error {
	_, err := s.events.AppendAll(alerts)
	return err
}
