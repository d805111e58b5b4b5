package schema

import (
	"time"
)

// Grimoire is a shareable, named collection of ordered rows. The 8 character
// public key identifies it to readers, the 16 character admin key (presented
// together with the public key) grants write access.
type Grimoire struct {
	PublicKey string `gorm:"size:8;primaryKey"`
	AdminKey  string `gorm:"size:16;not null"`

	Name string `gorm:"size:255"`

	LastViewed time.Time

	Rows []Row `gorm:"foreignKey:Gid;references:PublicKey;constraint:OnDelete:CASCADE"`
}

func (Grimoire) TableName() string {
	return "grimoire"
}

// Row holds one ordered entry of a grimoire. Data is an opaque JSON object
// serialized as text; its shape is entirely caller defined.
type Row struct {
	Id int64 `gorm:"primaryKey;autoIncrement"`

	Gid   string `gorm:"size:8;not null;index"`
	Order int    `gorm:"column:order;not null"`

	Data string
}

func (Row) TableName() string {
	return "row"
}

// ReservedRowKeys are assigned by the store and filtered out of caller
// supplied row payloads before persistence.
var ReservedRowKeys = []string{"id", "gid", "order"}

func IsReservedRowKey(key string) bool {
	for _, reserved := range ReservedRowKeys {
		if key == reserved {
			return true
		}
	}
	return false
}
