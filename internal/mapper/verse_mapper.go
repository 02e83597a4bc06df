package mapper

import (
	"bibleai-be/internal/model"
	"bibleai-be/pkg/bible"
)

type VerseMapper struct{}

func NewVerseMapper() *VerseMapper {
	return &VerseMapper{}
}

func (m *VerseMapper) ToDomain(v *model.Verse) bible.Verse {
	return bible.Verse{
		ID: bible.VerseID{
			Book:        bible.BookCode(v.Book),
			Chapter:     v.Chapter,
			Verse:       v.Verse,
			Translation: v.Translation,
		},
		Text:     v.Text,
		Language: bible.Language(v.Language),
		BookName: v.BookName,
	}
}

func (m *VerseMapper) ToModel(v bible.Verse) *model.Verse {
	return &model.Verse{
		VerseKey:    v.ID.Key(),
		Translation: v.ID.Translation,
		Book:        string(v.ID.Book),
		Chapter:     v.ID.Chapter,
		Verse:       v.ID.Verse,
		Text:        v.Text,
		Language:    string(v.Language),
		BookName:    v.BookName,
	}
}

func (m *VerseMapper) ToModels(verses []bible.Verse) []*model.Verse {
	out := make([]*model.Verse, len(verses))
	for i, v := range verses {
		out[i] = m.ToModel(v)
	}
	return out
}
