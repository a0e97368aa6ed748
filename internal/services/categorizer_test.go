package services

import (
	"errors"
	"testing"

	"github.com/pesatrack/backend/internal/models"
	"github.com/pesatrack/backend/internal/mpesa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizer_DefaultCategories(t *testing.T) {
	c, err := NewCategorizer(defaultCategories(t))
	require.NoError(t, err)
	parser := mpesa.NewParser()

	tests := []struct {
		name     string
		sms      string
		category string
	}{
		{"paybill to power company", paybillSMS, "cat-bills"},
		{"till at supermarket", tillSMS, "cat-shopping"},
		{"money received", receivedSMS, "cat-income"},
		{"money sent", sentSMS, "cat-transfers"},
		{"agent withdrawal", withdrawalSMS, "cat-transfers"},
		{"airtime purchase", airtimeSMS, "cat-airtime"},
		{"balance enquiry", balanceSMS, "cat-other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parser.Parse(tt.sms, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.category, c.Categorize(parsed.CategoryHint))
		})
	}
}

func TestCategorizer_PluralsAndCompoundNames(t *testing.T) {
	c, err := NewCategorizer(defaultCategories(t))
	require.NoError(t, err)

	tests := []struct {
		hint string
		want string
	}{
		{"JAVA HOUSE RESTAURANTS", "cat-food"},
		{"KENYA POWER BILLS", "cat-bills"},
		{"ZUKUFIBER", "cat-bills"},
		{"NAIVAS SUPERMARKETS", "cat-shopping"},
		{"Safaricom Bundles", "cat-airtime"},
		{"JAVA HOUSE", "cat-other"},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Categorize(tt.hint))
		})
	}
}

func TestCategorizer_MerchantPaymentUsesMerchantName(t *testing.T) {
	c, err := NewCategorizer(defaultCategories(t))
	require.NoError(t, err)
	parser := mpesa.NewParser()

	paybill := "TJ3CF6GKE1 Confirmed. Ksh800.00 sent to JAVA HOUSE for account 5521 on 4/10/25 at 1:15 PM New M-PESA balance is Ksh234.56."
	parsed, err := parser.Parse(paybill, nil)
	require.NoError(t, err)
	require.Equal(t, models.TypePaybill, parsed.Type)
	assert.Equal(t, "cat-other", c.Categorize(parsed.CategoryHint))

	till := "TJ3CF6GKE2 Confirmed. Ksh800.00 paid to JAVA HOUSE RESTAURANTS. on 4/10/25 at 1:15 PM.New M-PESA balance is Ksh234.56."
	parsed, err = parser.Parse(till, nil)
	require.NoError(t, err)
	require.Equal(t, models.TypeTill, parsed.Type)
	assert.Equal(t, "cat-food", c.Categorize(parsed.CategoryHint))
}

func TestCategorizer_Matching(t *testing.T) {
	categories := []models.Category{
		{ID: "food", Name: "Food", Keywords: models.StringList{"food", "Nyama Choma"}},
		{ID: "shop", Name: "Shopping", Keywords: models.StringList{"shop", "food"}},
		{ID: "other", Name: "Other", Keywords: models.StringList{}},
	}
	c, err := NewCategorizer(categories)
	require.NoError(t, err)

	tests := []struct {
		hint string
		want string
	}{
		{"FOOD court", "food"},
		{"mama's food.", "food"},
		{"nyama   choma joint", "food"},
		{"corner shop", "shop"},
		{"SHOPRITE", "shop"},
		{"seafood platter", "food"},
		{"nyamachoma", "other"},
		{"", "other"},
		{"   ", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Categorize(tt.hint))
		})
	}
}

func TestCategorize_ConfigurationErrors(t *testing.T) {
	_, err := Categorize("anything", nil)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrNoCategories)

	_, err = Categorize("anything", []models.Category{{ID: "food", Name: "Food"}})
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrNoFallbackCategory)

	id, err := Categorize("anything", []models.Category{{ID: "x", Name: "other"}})
	require.NoError(t, err)
	assert.Equal(t, "x", id)
}
