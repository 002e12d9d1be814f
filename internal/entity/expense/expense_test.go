package expense

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Validate(t *testing.T) {
	valid := Record{
		Amount:   decimal.RequireFromString("42.50"),
		Category: "Food",
		Date:     NewDate(2024, time.March, 1),
	}
	assert.NoError(t, valid.Validate())

	zeroAmount := valid
	zeroAmount.Amount = decimal.Zero
	assert.Error(t, zeroAmount.Validate())

	negative := valid
	negative.Amount = decimal.RequireFromString("-0.01")
	assert.Error(t, negative.Validate())

	blankCategory := valid
	blankCategory.Category = " \t "
	assert.Error(t, blankCategory.Validate())

	noDate := valid
	noDate.Date = Date{}
	assert.Error(t, noDate.Validate())
}

func Test_Equal_ComparesAmountsNumerically(t *testing.T) {
	a := Record{
		Amount:   decimal.RequireFromString("42.50"),
		Category: "Food",
		Date:     NewDate(2024, time.March, 1),
		Note:     "lunch",
	}
	b := a
	b.Amount = decimal.RequireFromString("42.5")
	assert.True(t, a.Equal(b))

	c := a
	c.Note = "dinner"
	assert.False(t, a.Equal(c))
}

func Test_Date_ParseAndFormat(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d.String())
	assert.True(t, d.Equal(NewDate(2024, time.March, 1)))

	for _, bad := range []string{"01-03-2024", "2024/03/01", "2024-13-01", "today", ""} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func Test_DisplayAmount_UsesTwoFractionalDigits(t *testing.T) {
	r := Record{Amount: decimal.RequireFromString("7")}
	assert.Equal(t, "7.00", r.DisplayAmount())

	r.Amount = decimal.RequireFromString("12.345")
	assert.Equal(t, "12.35", r.DisplayAmount())
}
