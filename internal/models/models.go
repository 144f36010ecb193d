package models

import "time"

type Contact struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Email              string `gorm:"uniqueIndex;not null"` // lower-cased, unique contact identity
	ZgodaPrzetwarzanie bool
	ZgodaKontakt       bool

	Submissions []Submission
}

// Submission is one finalized wizard run. ID is the reference handed back
// to the client.
type Submission struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	ContactID uint `gorm:"index"`
	Contact   Contact

	FormVersion string
	FormData    string `gorm:"type:text"` // sanitized JSON blob as submitted

	// scalars lifted from FormData for querying
	Sciezka            string `gorm:"index"`
	Wariant            string `gorm:"index"` // court | agreement | other
	SposobFinansowania string
	PodstawaUstalen    string
	RodzajSadu         string `gorm:"index"`
	Apelacja           string `gorm:"index"`
	RokDecyzji         *int   `gorm:"index"`
	WatekWiny          *bool  `gorm:"index"`

	Rola                 string
	WiekRodzica          *int
	PlecRodzica          string
	Wojewodztwo          string
	WielkoscMiejscowosci string

	Children         []Child
	Dochody          *Dochody
	KosztyUtrzymania []KosztyUtrzymania
}

type Child struct {
	ID           uint   `gorm:"primaryKey"`
	SubmissionID string `gorm:"index;size:36"`
	Position     int    // order within the submission

	Wiek                   *int
	Plec                   string
	SpecjalnePotrzeby      bool
	OpisSpecjalnychPotrzeb string
	ModelOpieki            string
	ProcentCzasuOpieki     *float64
}

type Dochody struct {
	ID           uint   `gorm:"primaryKey"`
	SubmissionID string `gorm:"uniqueIndex;size:36"`

	WlasneDochodyNetto          *float64
	DrugiRodzicDochodyNetto     *float64
	WlasneKosztyUtrzymania      *float64
	DrugiRodzicKosztyUtrzymania *float64
}

type KosztyUtrzymania struct {
	ID           uint   `gorm:"primaryKey"`
	SubmissionID string `gorm:"index;size:36"`
	ChildIndex   int

	MiesieczneKoszty *float64
	KwotaAlimentow   *float64
}

// TableName keeps the Polish plural GORM cannot derive.
func (Dochody) TableName() string          { return "dochody" }
func (KosztyUtrzymania) TableName() string { return "koszty_utrzymania" }
