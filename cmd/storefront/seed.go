package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lakon-apparel/storefront/internal/database"
	"github.com/lakon-apparel/storefront/internal/domain/product"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample products into the configured backend",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "config/seed.yaml", "YAML file with products to create")
}

type seedVariant struct {
	Size  string `yaml:"size"`
	Color string `yaml:"color"`
	SKU   string `yaml:"sku"`
	Stock int    `yaml:"stock"`
}

type seedProduct struct {
	Name           string        `yaml:"name"`
	Slug           string        `yaml:"slug"`
	Description    string        `yaml:"description"`
	Category       string        `yaml:"category"`
	Price          int64         `yaml:"price"`
	CompareAtPrice int64         `yaml:"compare_at_price"`
	Variants       []seedVariant `yaml:"variants"`
}

type seedData struct {
	Products []seedProduct `yaml:"products"`
}

func loadSeed(path string) (*seedData, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &data, nil
}

func (sp seedProduct) toProduct() *product.Product {
	slug := sp.Slug
	if slug == "" {
		slug = product.Slugify(sp.Name)
	}
	p := &product.Product{
		Name:           sp.Name,
		Slug:           slug,
		Description:    sp.Description,
		Category:       sp.Category,
		Price:          sp.Price,
		CompareAtPrice: sp.CompareAtPrice,
		Active:         true,
	}
	for _, v := range sp.Variants {
		p.Variants = append(p.Variants, product.Variant{Size: v.Size, Color: v.Color, SKU: v.SKU, Stock: v.Stock})
	}
	return p
}

// seedProducts creates products whose slug is not taken yet.
func seedProducts(ctx context.Context, repo database.ProductStore, data *seedData) (created, skipped int, err error) {
	for _, sp := range data.Products {
		p := sp.toProduct()
		if _, err := repo.GetProduct(ctx, p.Slug); err == nil {
			skipped++
			continue
		} else if !database.IsNotFound(err) {
			return created, skipped, fmt.Errorf("check %s: %w", p.Slug, err)
		}
		if err := repo.CreateProduct(ctx, p); err != nil {
			return created, skipped, fmt.Errorf("create %s: %w", p.Slug, err)
		}
		created++
	}
	return created, skipped, nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := loadSeed(seedFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sb, err := newSupabaseClient(cfg)
	if err != nil {
		return err
	}
	repo, closeRepo, err := openRepository(ctx, cfg, sb)
	if err != nil {
		return err
	}
	defer closeRepo()

	created, skipped, err := seedProducts(ctx, repo, data)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{"created": created, "skipped": skipped}).Info("seed complete")
	return nil
}
