package restore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tbmirror/internal/models"
	"tbmirror/internal/platform"
)

// DeviceState: состояние восстановления устройства.
//
//	Creating → Created
//	Creating → DuplicateDetected → Located → CredentialRepaired
//	Creating → Failed (атрибуты не восстанавливаются)
type DeviceState int

const (
	Creating DeviceState = iota
	Created
	DuplicateDetected
	Located
	CredentialRepaired
	Failed
)

func (s DeviceState) String() string {
	switch s {
	case Creating:
		return "creating"
	case Created:
		return "created"
	case DuplicateDetected:
		return "duplicate-detected"
	case Located:
		return "located"
	case CredentialRepaired:
		return "credential-repaired"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("DeviceState(%d)", int(s))
}

const defaultDeviceType = "default"

// RestoreDevice устанавливает устройство name с токеном из файла и восстанавливает
// непустые области атрибутов. Уже существующее устройство не пересоздаётся:
// ему только возвращается токен доступа из бэкапа.
func (im *Importer) RestoreDevice(ctx context.Context, name string, data []byte) (DeviceState, error) {
	var f models.DeviceFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Failed, fmt.Errorf("parse device file: %w", err)
	}
	log := im.log.WithField("device", name)

	state, deviceID, err := im.establishDevice(ctx, name, f.AccessToken, log)
	if err != nil {
		return state, err
	}

	var errs []error
	for _, scope := range models.Scopes {
		kv := f.Attributes.Scope(scope)
		if len(kv) == 0 {
			continue
		}
		if err := im.api.SaveDeviceAttributes(ctx, deviceID, scope, models.AsMap(kv)); err != nil {
			errs = append(errs, fmt.Errorf("%s attributes: %w", scope, err))
		}
	}
	return state, errors.Join(errs...)
}

func (im *Importer) establishDevice(ctx context.Context, name, token string, log *logrus.Entry) (DeviceState, string, error) {
	body := models.Entity{}
	if err := body.Set("name", name); err != nil {
		return Failed, "", err
	}
	if err := body.Set("type", defaultDeviceType); err != nil {
		return Failed, "", err
	}

	created, err := im.api.CreateDevice(ctx, body, token)
	if err == nil {
		log.Debug("device created")
		return Created, created.ID(), nil
	}
	if !platform.IsDuplicate(err, im.opts.DuplicateCode) {
		return Failed, "", fmt.Errorf("create device: %w", err)
	}

	// DuplicateDetected → Located
	ref, err := im.res.Resolve(ctx, platform.KindDevice, name)
	if err != nil {
		return Failed, "", fmt.Errorf("locate existing device: %w", err)
	}
	if token == "" {
		log.Debug("device exists, no token to repair")
		return Located, ref.ID.ID, nil
	}

	// Located → CredentialRepaired
	cr, err := im.api.DeviceCredentials(ctx, ref.ID.ID)
	if err != nil {
		return Located, "", fmt.Errorf("read credentials: %w", err)
	}
	if cr.CredentialsID != token {
		cr.CredentialsID = token
		if _, err := im.api.SaveDeviceCredentials(ctx, cr); err != nil {
			return Located, "", fmt.Errorf("repair credentials: %w", err)
		}
		log.Info("device exists, access token repaired")
	}
	return CredentialRepaired, ref.ID.ID, nil
}
