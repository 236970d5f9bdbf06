package domain

// User is a customer or translator account, flattened together with the
// meta attributes the workflow consults.
type User struct {
	ID           string  `db:"id"`
	Role         Role    `db:"role"`
	Name         string  `db:"name"`
	Email        string  `db:"email"`
	Mobile       string  `db:"mobile"`
	Gender       *Gender `db:"gender"`
	City         string  `db:"city"`
	ConsumerType string  `db:"consumer_type"` // customers only

	// Translator capabilities.
	TranslatorType *TranslatorType   `db:"translator_type"`
	Levels         []TranslatorLevel `db:"levels"`
	LanguageIDs    []string          `db:"language_ids"`

	// Notification preferences.
	SuppressAll       bool `db:"suppress_all"`
	SuppressNighttime bool `db:"suppress_nighttime"`
	SuppressEmergency bool `db:"suppress_emergency"`
}

// HasLevel reports whether the translator carries any of the given
// capability tags.
func (u *User) HasLevel(accepted []TranslatorLevel) bool {
	for _, have := range u.Levels {
		for _, want := range accepted {
			if have == want {
				return true
			}
		}
	}
	return false
}

// SpeaksLanguage reports whether the translator covers the language.
func (u *User) SpeaksLanguage(languageID string) bool {
	for _, id := range u.LanguageIDs {
		if id == languageID {
			return true
		}
	}
	return false
}
