package puzzle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/atlas/models"
)

func testContent() *Content {
	return &Content{
		Europe: &EuropeContent{TargetWord: "salut"},
		Asia:   &AsiaContent{ValidSlotsUTC: []string{"04:30", "05:00"}},
		Americas: &AmericasContent{
			Rules:           CabinRules{MaxCabinKg: 10, MaxLiquidMl: 100, MaxPowerWh: 100},
			ProhibitedItems: []string{"couteau"},
			Items: []CabinItem{
				{Name: "Ordinateur", WeightKg: 2, PowerWh: 60},
				{Name: "Batterie", WeightKg: 1, PowerWh: 160},
				{Name: "Parfum", WeightKg: 1, VolumeMl: 50, IsLiquid: true},
				{Name: "Shampoing", WeightKg: 1, VolumeMl: 250, IsLiquid: true},
				{Name: "Couteau", WeightKg: 1},
				{Name: "Livre", WeightKg: 1000},
			},
		},
		Africa:     &AfricaContent{ExpectedFinalAmount: 2484},
		Oceania:    &OceaniaContent{CorrectRoute: "B"},
		Antarctica: &AntarcticaContent{ExpectedAnswer: "VOSTOK"},
		Meta:       &MetaContent{ExpectedKey: "monde→↑→↑", JokerLetter: "X"},
	}
}

func TestContentValidator_Validate(t *testing.T) {
	v := NewContentValidator(testContent(), false)

	tests := []struct {
		name      string
		continent models.Continent
		answer    string
		success   bool
		fragment  string
		errorCode string
	}{
		{"europe ok", models.Europe, " Salut ", true, "S", ""},
		{"europe length", models.Europe, "SAL", false, "", "E_EU_WRONG_LENGTH"},
		{"europe wrong", models.Europe, "HELLO", false, "", "E_EU_WRONG_LETTER"},
		{"asia half hour", models.Asia, "04:30", true, "→→", ""},
		{"asia full hour", models.Asia, "05:00", true, "→↑", ""},
		{"asia format", models.Asia, "4h30", false, "", "E_AS_FORMAT"},
		{"asia slot", models.Asia, "12:00", false, "", "E_AS_NO_COMMON_SLOT"},
		{"americas ok", models.Americas, "1003", true, "X", ""},
		{"americas format", models.Americas, "12", false, "", "E_AM_FORMAT"},
		{"americas sum", models.Americas, "0004", false, "", "E_AM_SUM_MISMATCH"},
		{"africa ok", models.Africa, "2484", true, "A", ""},
		{"africa format", models.Africa, "24a4", false, "", "E_AF_FORMAT"},
		{"africa calc", models.Africa, "1000", false, "", "E_AF_WRONG_CALC"},
		{"oceania ok", models.Oceania, "b", true, "→", ""},
		{"oceania format", models.Oceania, "E", false, "", "E_OC_FORMAT"},
		{"oceania route", models.Oceania, "A", false, "", "E_OC_WRONG_ROUTE"},
		{"antarctica ok", models.Antarctica, "vostok", true, "V", ""},
		{"antarctica format", models.Antarctica, "vo", false, "", "E_AN_FORMAT"},
		{"antarctica wrong", models.Antarctica, "CONCORDIA", false, "", "E_AN_WRONG_STATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.continent, tt.answer)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.fragment, res.Fragment)
			assert.Equal(t, tt.errorCode, res.ErrorCode)
		})
	}
}

func TestContentValidator_FragmentIsFirstLetter(t *testing.T) {
	c := testContent()
	c.Europe.TargetWord = "école"
	c.Antarctica.ExpectedAnswer = "Île"
	v := NewContentValidator(c, false)

	res := v.Validate(models.Europe, "École")
	require.True(t, res.Success)
	assert.Equal(t, "É", res.Fragment)

	res = v.Validate(models.Antarctica, "île")
	require.True(t, res.Success)
	assert.Equal(t, "Î", res.Fragment)
}

func TestContentValidator_MissingDataIsAFailure(t *testing.T) {
	v := NewContentValidator(nil, false)

	for _, c := range models.AllContinents {
		res := v.Validate(c, "anything")
		assert.False(t, res.Success, c)
		assert.Equal(t, ErrDataUnavailable, res.ErrorCode, c)
	}
	assert.False(t, v.ValidateMeta("MONDE→↑→↑", nil))
}

func TestContentValidator_ValidateMeta(t *testing.T) {
	v := NewContentValidator(testContent(), false)
	assert.True(t, v.ValidateMeta(" MONDE→↑→↑ ", map[string]string{}))
	assert.False(t, v.ValidateMeta("MONDE", nil))

	demo := NewContentValidator(nil, true)
	assert.True(t, demo.ValidateMeta("monde→↑→↑", nil))
	assert.False(t, demo.ValidateMeta("other", nil))
}

func TestFinalCode(t *testing.T) {
	draw := []models.Continent{models.Asia, models.Oceania, models.Europe}
	assert.Equal(t, "TIC", FinalCode(draw))

	v := NewContentValidator(nil, false)
	assert.True(t, v.ValidateFinal(" tic", draw))
	assert.False(t, v.ValidateFinal("CIT", draw))
}

func TestLoadContent(t *testing.T) {
	c, err := LoadContent(filepath.Join("..", "content"))
	require.NoError(t, err)
	require.NotNil(t, c.Europe)
	require.NotNil(t, c.Meta)

	v := NewContentValidator(c, false)
	assert.True(t, v.Validate(models.Europe, c.Europe.TargetWord).Success)
	assert.True(t, v.Validate(models.Americas, "0004").Success)
}

func TestLoadContent_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oc_islands.json"), []byte(`{"correctRoute":"C"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "an_stations.json"), []byte(`{not json`), 0o644))

	c, err := LoadContent(dir)
	assert.Error(t, err)
	require.NotNil(t, c.Oceania)
	assert.Equal(t, "C", c.Oceania.CorrectRoute)
	assert.Nil(t, c.Antarctica)
	assert.Nil(t, c.Europe)
}
