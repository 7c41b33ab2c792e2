package watcher

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDeviceNotFound means the patient has no registered device document.
var ErrDeviceNotFound = errors.New("no device registered for patient")

// DeviceDirectory cross-references the document store for a patient's
// push-capable device.
type DeviceDirectory interface {
	DeviceForPatient(ctx context.Context, patientID string) (*Device, error)
}

type mongoDevices struct {
	coll *mongo.Collection
}

// NewMongoDevices reads device documents from the patient_devices collection.
func NewMongoDevices(db *mongo.Database) DeviceDirectory {
	return &mongoDevices{coll: db.Collection("patient_devices")}
}

func (d *mongoDevices) DeviceForPatient(ctx context.Context, patientID string) (*Device, error) {
	// Most recently updated registration wins when a patient has several.
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	var device Device
	err := d.coll.FindOne(ctx, bson.M{"patientId": patientID}, opts).Decode(&device)
	if err == mongo.ErrNoDocuments {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find device for patient %s: %w", patientID, err)
	}
	if device.FCMToken == "" {
		return nil, ErrDeviceNotFound
	}
	return &device, nil
}
