package restore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tbmirror/internal/models"
	"tbmirror/internal/platform"
)

// BundleAlias: алиас бандла из имени файла.
func BundleAlias(fileName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(fileName)), " ", "_")
}

// RestoreWidgetBundle создаёт бандл и все его типы виджетов.
// Существующий бандл с тем же алиасом не проверяется.
func (im *Importer) RestoreWidgetBundle(ctx context.Context, name string, data []byte) error {
	file, err := models.ParseObject(data)
	if err != nil {
		return fmt.Errorf("parse widget bundle: %w", err)
	}
	bundle, ok, err := file.Object("widgetsBundle")
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("widget bundle file has no widgetsBundle")
	}
	types, _, err := file.Objects("widgetTypes")
	if err != nil {
		return err
	}

	alias := BundleAlias(name)
	bundle.StripLocal()
	if err := bundle.Set("alias", alias); err != nil {
		return err
	}
	if _, err := im.api.Create(ctx, platform.KindWidgetBundle, bundle); err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}

	var errs []error
	for _, t := range types {
		t.StripLocal()
		if err := t.Set("bundleAlias", alias); err != nil {
			return err
		}
		if _, err := im.api.Create(ctx, platform.KindWidgetType, t); err != nil {
			errs = append(errs, fmt.Errorf("widget type %s: %w", t.DisplayName(), err))
		}
	}
	return errors.Join(errs...)
}

// RestoreRuleChain создаёт цепочку правил (никогда не корневую) и сохраняет её узлы.
// Ссылки на другие цепочки в ruleChainConnections переносятся как есть.
func (im *Importer) RestoreRuleChain(ctx context.Context, name string, data []byte) error {
	file, err := models.ParseObject(data)
	if err != nil {
		return fmt.Errorf("parse rule chain: %w", err)
	}
	chain, ok, err := file.Object("ruleChain")
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("rule chain file has no ruleChain")
	}
	chain.StripLocal()
	chain.Delete("firstRuleNodeId")
	if err := chain.Set("root", false); err != nil {
		return err
	}
	created, err := im.api.Create(ctx, platform.KindRuleChain, chain)
	if err != nil {
		return fmt.Errorf("create rule chain: %w", err)
	}

	md, ok, err := file.Object("metadata")
	if err != nil || !ok {
		return err
	}
	nodes, _, err := md.Objects("nodes")
	if err != nil {
		return err
	}
	for _, n := range nodes {
		n.Delete("id", "createdTime", "ruleChainId")
	}
	if nodes != nil {
		if err := md.Set("nodes", nodes); err != nil {
			return err
		}
	}
	if err := md.Set("ruleChainId", models.EntityID{EntityType: string(platform.KindRuleChain), ID: created.ID()}); err != nil {
		return err
	}
	if _, err := im.api.SaveRuleChainMetadata(ctx, md); err != nil {
		return fmt.Errorf("save rule chain metadata: %w", err)
	}
	return nil
}

// RestoreCustomer создаёт клиента; клиент с тем же именем считается уже восстановленным.
func (im *Importer) RestoreCustomer(ctx context.Context, name string, data []byte) error {
	c, err := models.ParseObject(data)
	if err != nil {
		return fmt.Errorf("parse customer: %w", err)
	}
	c.StripLocal()
	if _, err := im.api.Create(ctx, platform.KindCustomer, c); err != nil {
		if platform.IsDuplicate(err, im.opts.DuplicateCode) {
			im.log.WithField("customer", c.DisplayName()).Info("customer already exists")
			return nil
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}
