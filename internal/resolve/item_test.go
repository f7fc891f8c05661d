package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/store"
	"github.com/rezonia/nf-reconciler/internal/store/memory"
)

func newItemResolver(t *testing.T) (*ItemResolver, *store.Store, *config.Config) {
	t.Helper()
	st := memory.New()
	cfg := config.Default()
	return NewItemResolver(st.Items, st.Invoices, cfg, zap.NewNop()), st, cfg
}

func TestResolveItemBySupplierPart(t *testing.T) {
	resolver, st, _ := newItemResolver(t)
	ctx := context.Background()

	item := &store.Item{Code: "ITM-0001", Name: "Parafuso M6 inox"}
	require.NoError(t, st.Items.Create(ctx, item))
	require.NoError(t, st.Items.LinkSupplierPart(ctx, &store.ItemSupplierPart{
		ItemID: item.ID, SupplierID: "sup-1", PartCode: "PAR-M6",
	}))

	rec := &model.FiscalRecord{
		Type:       model.DocTypeNFe,
		SupplierID: "sup-1",
		Items: []model.LineItem{
			{Seq: 1, SupplierPartCode: "PAR-M6", Description: "Parafuso M6 inox"},
		},
	}

	resolution := resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemsAllCreated, resolution)
	assert.Equal(t, model.ItemLinked, rec.Items[0].ItemStatus)
	assert.Equal(t, "ITM-0001", rec.Items[0].ItemCode)
}

// Two items share an NCM; the description decides which one links.
func TestResolveItemByNCMWithDescriptionDisambiguation(t *testing.T) {
	resolver, st, _ := newItemResolver(t)
	ctx := context.Background()

	require.NoError(t, st.Items.Create(ctx, &store.Item{
		Code: "PAR-M6-INOX", Name: "Parafuso M6 inox", NCM: "73181500",
	}))
	require.NoError(t, st.Items.Create(ctx, &store.Item{
		Code: "PAR-M8-ZINC", Name: "Parafuso M8 zincado", NCM: "73181500",
	}))

	rec := &model.FiscalRecord{
		Type: model.DocTypeNFe,
		Items: []model.LineItem{
			{Seq: 1, Description: "Parafuso M6 inox polido", NCM: "73181500"},
		},
	}

	resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemLinked, rec.Items[0].ItemStatus)
	assert.Equal(t, "PAR-M6-INOX", rec.Items[0].ItemCode)
}

func TestResolveItemSingleNCMMatch(t *testing.T) {
	resolver, st, _ := newItemResolver(t)
	ctx := context.Background()

	require.NoError(t, st.Items.Create(ctx, &store.Item{
		Code: "PRC-10", Name: "Porca sextavada", NCM: "73181600",
	}))

	rec := &model.FiscalRecord{
		Type: model.DocTypeNFe,
		Items: []model.LineItem{
			{Seq: 1, Description: "Porca galvanizada especial 10mm", NCM: "73181600"},
		},
	}

	resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemLinked, rec.Items[0].ItemStatus)
	assert.Equal(t, "PRC-10", rec.Items[0].ItemCode)
}

func TestResolveItemFromInvoiceHistory(t *testing.T) {
	resolver, st, _ := newItemResolver(t)
	ctx := context.Background()

	require.NoError(t, st.Items.Create(ctx, &store.Item{
		Code: "ITM-HIST", Name: "Parafuso M6 inox",
	}))
	require.NoError(t, st.Invoices.Create(ctx, &store.PurchaseInvoice{
		SupplierID: "sup-1",
		Date:       time.Now().AddDate(0, -1, 0),
		Status:     store.DocSubmitted,
		Items: []store.PIItem{
			{ItemCode: "ITM-HIST", Description: "Parafuso M6 inox", Rate: decimal.NewFromFloat(2.50)},
		},
	}))

	rec := &model.FiscalRecord{
		Type:       model.DocTypeNFe,
		SupplierID: "sup-1",
		IssueDate:  time.Now(),
		Items: []model.LineItem{
			{Seq: 1, Description: "Parafuso M6 inox polido", UnitPrice: decimal.NewFromFloat(2.55)},
		},
	}

	resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemLinked, rec.Items[0].ItemStatus)
	assert.Equal(t, "ITM-HIST", rec.Items[0].ItemCode)
}

func TestResolveItemAutoCreateProduct(t *testing.T) {
	resolver, st, _ := newItemResolver(t)
	ctx := context.Background()

	rec := &model.FiscalRecord{
		Type:       model.DocTypeNFe,
		SupplierID: "sup-1",
		Items: []model.LineItem{
			{Seq: 1, SupplierPartCode: "PAR-M6", Description: "Parafuso M6 inox", NCM: "73181500", Unit: "UN"},
		},
	}

	resolution := resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemsAllCreated, resolution)
	assert.Equal(t, model.ItemCreated, rec.Items[0].ItemStatus)
	assert.Equal(t, "PAR-M6", rec.Items[0].ItemCode)

	created, err := st.Items.GetByCode(ctx, "PAR-M6")
	require.NoError(t, err)
	assert.True(t, created.IsStock)
	assert.Equal(t, "73181500", created.NCM)
	assert.Equal(t, "UN", created.UOM)

	// The supplier part link must exist so a re-run links instead
	linked, err := st.Items.GetBySupplierPart(ctx, "sup-1", "PAR-M6")
	require.NoError(t, err)
	assert.Equal(t, created.ID, linked.ID)

	resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemLinked, rec.Items[0].ItemStatus)
}

func TestResolveItemAutoCreateService(t *testing.T) {
	resolver, st, cfg := newItemResolver(t)
	cfg.Processing.ExpenseAccount = "Despesas com Serviços"
	ctx := context.Background()

	rec := &model.FiscalRecord{
		Type: model.DocTypeNFSe,
		Items: []model.LineItem{
			{Seq: 1, Description: "Consultoria fiscal mensal", ServiceCode: "010701"},
		},
	}

	resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemCreated, rec.Items[0].ItemStatus)
	assert.Equal(t, "SRV-010701", rec.Items[0].ItemCode)

	created, err := st.Items.GetByCode(ctx, "SRV-010701")
	require.NoError(t, err)
	assert.False(t, created.IsStock)
	assert.Equal(t, "Services", created.Group)
	assert.Equal(t, "Despesas com Serviços", created.ExpenseAccount)
}

func TestResolveItemsPartialAggregate(t *testing.T) {
	resolver, st, cfg := newItemResolver(t)
	cfg.Processing.AutoCreateItem = false
	ctx := context.Background()

	item := &store.Item{Code: "ITM-0001", Name: "Parafuso M6 inox"}
	require.NoError(t, st.Items.Create(ctx, item))
	require.NoError(t, st.Items.LinkSupplierPart(ctx, &store.ItemSupplierPart{
		ItemID: item.ID, SupplierID: "sup-1", PartCode: "PAR-M6",
	}))

	rec := &model.FiscalRecord{
		Type:       model.DocTypeNFe,
		SupplierID: "sup-1",
		Items: []model.LineItem{
			{Seq: 1, SupplierPartCode: "PAR-M6", Description: "Parafuso M6 inox"},
			{Seq: 2, SupplierPartCode: "DESCONHECIDO", Description: "Item sem cadastro"},
		},
	}

	resolution := resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemsPartial, resolution)
	assert.Equal(t, model.ItemLinked, rec.Items[0].ItemStatus)
	assert.Equal(t, model.ItemFailed, rec.Items[1].ItemStatus)

	rec.Items[0].SupplierPartCode = "TAMBEM-DESCONHECIDO"
	rec.Items[0].Description = "Outro item sem cadastro"
	resolution = resolver.ResolveAll(ctx, rec)
	assert.Equal(t, model.ItemsFailed, resolution)
}

func TestDescriptionMatches(t *testing.T) {
	assert.True(t, descriptionMatches("Parafuso M6 inox", "Parafuso M6 inox polido"))
	assert.True(t, descriptionMatches("Porca sextavada", "porca SEXTAVADA galvanizada"))
	assert.False(t, descriptionMatches("Parafuso M6 inox", "Arruela lisa zincada"))
	assert.False(t, descriptionMatches("", "qualquer"))

	// Filler words never count as overlap, even when they are all there is
	assert.False(t, descriptionMatches("de para com", "de para com"))
	assert.False(t, descriptionMatches("Aditivo para radiador", "para motor"))
	assert.True(t, descriptionMatches("Chapa de aco inox", "chapa aco inox 2mm"))
}
