package watcher

import "time"

// EventKind distinguishes the two lifecycle sweeps.
type EventKind string

const (
	EventStart EventKind = "start"
	EventStop  EventKind = "stop"
)

// Booking is one service-lifecycle row from the relational store.
type Booking struct {
	ID          int64
	PatientID   string
	ServiceName string
	Status      string
	StartedAt   *time.Time
	EndedAt     *time.Time
}

// Device is a patient's registered mobile device from the document store.
type Device struct {
	PatientID string `bson:"patientId"`
	FCMToken  string `bson:"fcmToken"`
	Platform  string `bson:"platform,omitempty"`
}
