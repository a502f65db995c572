// SPDX-License-Identifier: GPL-3.0-only

package models

// SnapshotModels are the tables written by the importer into the ARCEP snapshot.
var SnapshotModels []any

// GeographicRange is a number block assigned to an operator in the 01-05 plan.
type GeographicRange struct {
	Prefix       string  `gorm:"column:PlageTel;index"`
	OperatorCode string  `gorm:"column:CodeOperateur"`
	CommuneCode  *string `gorm:"column:CodeInsee"`
}

func (GeographicRange) TableName() string { return "PlagesNumerosGeographiques" }

// NonGeographicRange is a mobile, VoIP or special-service number block.
type NonGeographicRange struct {
	Prefix       string `gorm:"column:PlageTel;index"`
	OperatorCode string `gorm:"column:CodeOperateur"`
}

func (NonGeographicRange) TableName() string { return "PlagesNumeros" }

type Operator struct {
	Code    string `gorm:"column:CodeOperateur;index"`
	Name    string `gorm:"column:NomOperateur"`
	Type    string `gorm:"column:TypeOperateur"`
	Email   string `gorm:"column:MailOperateur"`
	Website string `gorm:"column:SiteOperateur"`
}

func (Operator) TableName() string { return "Operateurs" }

// Commune is an INSEE municipality. Codes stay text so "2A004" and "01001" survive.
type Commune struct {
	Code       string   `gorm:"column:CodeInsee;index"`
	Name       string   `gorm:"column:NomCommune"`
	PostalCode string   `gorm:"column:CodePostal"`
	Department string   `gorm:"column:NomDepartement"`
	Latitude   *float64 `gorm:"column:Latitude"`
	Longitude  *float64 `gorm:"column:Longitude"`
}

func (Commune) TableName() string { return "Communes" }

// HasCoordinates reports whether both GPS coordinates are known.
func (c Commune) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

func init() {
	SnapshotModels = append(SnapshotModels,
		&GeographicRange{},
		&NonGeographicRange{},
		&Operator{},
		&Commune{},
	)
}
