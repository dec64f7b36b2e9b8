// models/continent.go
package models

import (
	"fmt"
	"strings"
)

// Continent 谜题大洲，共6个，每个房间抽取3个
type Continent string

const (
	Europe     Continent = "EUROPE"
	Asia       Continent = "ASIA"
	Americas   Continent = "AMERICAS"
	Africa     Continent = "AFRICA"
	Oceania    Continent = "OCEANIA"
	Antarctica Continent = "ANTARCTICA"
)

// AllContinents is the fixed universe rooms draw from.
var AllContinents = []Continent{Europe, Asia, Americas, Africa, Oceania, Antarctica}

type continentInfo struct {
	key     string
	slot    string
	keyword string
}

var continentTable = map[Continent]continentInfo{
	Europe:     {key: "eu", slot: "letterEU", keyword: "CULTURE"},
	Asia:       {key: "as", slot: "directionAS", keyword: "TEMPS"},
	Americas:   {key: "am", slot: "letterJoker", keyword: "VOYAGE"},
	Africa:     {key: "af", slot: "letterAF", keyword: "FINANCE"},
	Oceania:    {key: "oc", slot: "directionOC", keyword: "ILES"},
	Antarctica: {key: "an", slot: "letterAN", keyword: "GLACE"},
}

// ParseContinent 解析大洲标识（忽略大小写和首尾空白）
func ParseContinent(s string) (Continent, error) {
	c := Continent(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := continentTable[c]; !ok {
		return "", fmt.Errorf("unknown continent %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the six known continents.
func (c Continent) Valid() bool {
	_, ok := continentTable[c]
	return ok
}

// Key is the two-letter key used in the solved and hintsUsed maps.
func (c Continent) Key() string {
	return continentTable[c].key
}

// FragmentSlot is the fragments map entry filled when c is solved.
func (c Continent) FragmentSlot() string {
	return continentTable[c].slot
}

// Keyword 最终拆弹码使用的关键词
func (c Continent) Keyword() string {
	return continentTable[c].keyword
}

func (c Continent) String() string {
	return string(c)
}
