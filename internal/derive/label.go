package derive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tbmirror/internal/logs"
	"tbmirror/internal/models"
	"tbmirror/internal/platform"
)

// LabelsKey: атрибут устройства с картой «ключ данных → подпись».
const LabelsKey = "LABELS"

var ErrNoLabels = errors.New("device has no " + LabelsKey + " attribute")

// Label переподписывает виджеты дашборда по карте LABELS устройства и сохраняет дашборд.
func Label(ctx context.Context, api platform.API, res Resolver, dashboard, device string) error {
	dashRef, devRef, err := target(ctx, res, dashboard, device)
	if err != nil {
		return err
	}
	attrs, err := api.DeviceAttributesByKeys(ctx, devRef.ID.ID, LabelsKey)
	if err != nil {
		return fmt.Errorf("read %s: %w", LabelsKey, err)
	}
	labels, err := parseLabels(attrs)
	if err != nil {
		return err
	}
	dash, err := api.Get(ctx, platform.KindDashboard, dashRef.ID.ID)
	if err != nil {
		return fmt.Errorf("fetch dashboard: %w", err)
	}
	n, err := Relabel(dash, labels)
	if err != nil {
		return err
	}
	if _, err := api.Update(ctx, platform.KindDashboard, dash); err != nil {
		return fmt.Errorf("update dashboard: %w", err)
	}
	logs.For("label").WithField("dashboard", dashRef.Name).Infof("relabeled %d widgets from %s", n, devRef.Name)
	return nil
}

// parseLabels принимает LABELS и как JSON-строку, и как объект.
func parseLabels(attrs []models.Attribute) (map[string]string, error) {
	for _, a := range attrs {
		if a.Key != LabelsKey {
			continue
		}
		raw := []byte(a.Value)
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			raw = []byte(s)
		}
		labels := map[string]string{}
		if err := json.Unmarshal(raw, &labels); err != nil {
			return nil, fmt.Errorf("parse %s: %w", LabelsKey, err)
		}
		return labels, nil
	}
	return nil, ErrNoLabels
}

// Relabel меняет подписи в виджетах rpc, latest и timeseries. Возвращает число
// изменённых виджетов. Ключ без записи в labels сохраняет текущую подпись.
func Relabel(dash models.Object, labels map[string]string) (int, error) {
	cfg, ok, err := dash.Object("configuration")
	if err != nil || !ok {
		return 0, err
	}
	widgets, ok, err := cfg.Object("widgets")
	if err != nil || !ok {
		return 0, err
	}
	changed := 0
	for id := range widgets {
		w, _, err := widgets.Object(id)
		if err != nil {
			return changed, fmt.Errorf("widget %s: %w", id, err)
		}
		wcfg, ok, err := w.Object("config")
		if err != nil || !ok {
			continue
		}
		switch w.String("type") {
		case "rpc":
			err = relabelRPC(wcfg, labels)
		case "latest", "timeseries":
			err = relabelDatasources(wcfg, labels)
		default:
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("widget %s: %w", id, err)
		}
		if err := w.Set("config", wcfg); err != nil {
			return changed, err
		}
		if err := widgets.Set(id, w); err != nil {
			return changed, err
		}
		changed++
	}
	if err := cfg.Set("widgets", widgets); err != nil {
		return changed, err
	}
	return changed, dash.Set("configuration", cfg)
}

// rpc-виджет: подпись settings.title по ключу settings.valueKey.
func relabelRPC(wcfg models.Object, labels map[string]string) error {
	settings, ok, err := wcfg.Object("settings")
	if err != nil || !ok {
		return err
	}
	if label, ok := labels[settings.String("valueKey")]; ok {
		if err := settings.Set("title", label); err != nil {
			return err
		}
	}
	return wcfg.Set("settings", settings)
}

// Один источник: переподписывается его первый ключ. Несколько: все ключи всех источников.
func relabelDatasources(wcfg models.Object, labels map[string]string) error {
	sources, ok, err := wcfg.Objects("datasources")
	if err != nil || !ok || len(sources) == 0 {
		return err
	}
	for i, ds := range sources {
		keys, ok, err := ds.Objects("dataKeys")
		if err != nil {
			return err
		}
		if !ok || len(keys) == 0 {
			continue
		}
		limit := len(keys)
		if len(sources) == 1 {
			limit = 1
		}
		for _, k := range keys[:limit] {
			if label, ok := labels[k.String("name")]; ok {
				if err := k.Set("label", label); err != nil {
					return err
				}
			}
		}
		if err := ds.Set("dataKeys", keys); err != nil {
			return err
		}
		sources[i] = ds
	}
	return wcfg.Set("datasources", sources)
}
