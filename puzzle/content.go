// puzzle/content.go
package puzzle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wfunc/atlas/logger"
)

type EuropeContent struct {
	TargetWord string `json:"targetWord"`
}

type AsiaContent struct {
	ValidSlotsUTC []string `json:"validSlotsUTC"`
}

type CabinItem struct {
	Name     string `json:"name"`
	WeightKg int    `json:"weightKg"`
	VolumeMl int    `json:"volumeMl"`
	IsLiquid bool   `json:"isLiquid"`
	PowerWh  int    `json:"powerWh"`
}

type CabinRules struct {
	MaxCabinKg  int `json:"maxCabinKg"`
	MaxLiquidMl int `json:"maxLiquidMl"`
	MaxPowerWh  int `json:"maxPowerWh"`
}

type AmericasContent struct {
	Items           []CabinItem `json:"items"`
	Rules           CabinRules  `json:"rules"`
	ProhibitedItems []string    `json:"prohibitedItems"`
}

type AfricaContent struct {
	ExpectedFinalAmount int `json:"expectedFinalAmount"`
}

type OceaniaContent struct {
	CorrectRoute string `json:"correctRoute"`
}

type AntarcticaContent struct {
	ExpectedAnswer string `json:"expectedAnswer"`
}

type MetaContent struct {
	ExpectedKey string `json:"expectedKey"`
	JokerLetter string `json:"jokerLetter"`
}

// Content 谜题内容，缺失的部分为nil
type Content struct {
	Europe     *EuropeContent
	Asia       *AsiaContent
	Americas   *AmericasContent
	Africa     *AfricaContent
	Oceania    *OceaniaContent
	Antarctica *AntarcticaContent
	Meta       *MetaContent
}

// LoadContent reads every content file under dir. A file that is missing or malformed
// leaves its part nil and is reported in the returned error; the other parts still load.
func LoadContent(dir string) (*Content, error) {
	c := &Content{}
	var errs []error

	load := func(name string, dst any) bool {
		if err := readJSON(filepath.Join(dir, name), dst); err != nil {
			errs = append(errs, err)
			return false
		}
		return true
	}

	var eu EuropeContent
	if load("eu_salutations.json", &eu) {
		c.Europe = &eu
	}
	var as AsiaContent
	if load("as_time.json", &as) {
		c.Asia = &as
	}
	var am AmericasContent
	if load("am_items.json", &am) {
		c.Americas = &am
	}
	var af AfricaContent
	if load("af_currencies.json", &af) {
		c.Africa = &af
	}
	var oc OceaniaContent
	if load("oc_islands.json", &oc) {
		c.Oceania = &oc
	}
	var an AntarcticaContent
	if load("an_stations.json", &an) {
		c.Antarctica = &an
	}
	var meta MetaContent
	if load("meta_config.json", &meta) {
		c.Meta = &meta
	}

	if len(errs) > 0 {
		return c, fmt.Errorf("load puzzle content: %d file(s) failed, first: %w", len(errs), errs[0])
	}
	logger.Log.Infof("Puzzle content loaded from %s (6 continents)", dir)
	return c, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
