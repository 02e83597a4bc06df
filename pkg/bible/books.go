package bible

import (
	"fmt"
	"strings"
	"unicode"
)

// BookCode is the language-independent identifier of a canonical book (USFM style).
type BookCode string

// Book holds the canonical metadata and every recognized name variant for one book.
type Book struct {
	Code     BookCode
	Order    int
	Name     string // English display name
	NameKR   string // Korean display name
	Chapters int

	// Abbreviations lists additional English and Korean variants.
	Abbreviations []string

	// ShortKR lists single-syllable Korean forms. They collide with ordinary
	// words, so the parser accepts them only directly before a chapter number,
	// and spaced forms only when a verse follows.
	ShortKR []string
}

// books contains the 66-book Protestant canon in canonical order.
var books = []Book{
	// ── Old Testament ──────────────────────────────────────────────────────────
	{"GEN", 1, "Genesis", "창세기", 50, []string{"Gen", "Ge", "Gn"}, []string{"창"}},
	{"EXO", 2, "Exodus", "출애굽기", 40, []string{"Exod", "Exo", "Ex"}, []string{"출"}},
	{"LEV", 3, "Leviticus", "레위기", 27, []string{"Lev", "Le", "Lv"}, []string{"레"}},
	{"NUM", 4, "Numbers", "민수기", 36, []string{"Num", "Nu", "Nm"}, []string{"민"}},
	{"DEU", 5, "Deuteronomy", "신명기", 34, []string{"Deut", "Deu", "Dt"}, []string{"신"}},
	{"JOS", 6, "Joshua", "여호수아", 24, []string{"Josh", "Jos"}, []string{"수"}},
	{"JDG", 7, "Judges", "사사기", 21, []string{"Judg", "Jdg", "Jg"}, []string{"삿"}},
	{"RUT", 8, "Ruth", "룻기", 4, []string{"Rut", "Ru"}, []string{"룻"}},
	{"1SA", 9, "1 Samuel", "사무엘상", 31, []string{"1 Sam", "1 Sa", "I Samuel", "First Samuel", "삼상"}, nil},
	{"2SA", 10, "2 Samuel", "사무엘하", 24, []string{"2 Sam", "2 Sa", "II Samuel", "Second Samuel", "삼하"}, nil},
	{"1KI", 11, "1 Kings", "열왕기상", 22, []string{"1 Kgs", "1 Ki", "I Kings", "First Kings", "왕상"}, nil},
	{"2KI", 12, "2 Kings", "열왕기하", 25, []string{"2 Kgs", "2 Ki", "II Kings", "Second Kings", "왕하"}, nil},
	{"1CH", 13, "1 Chronicles", "역대상", 29, []string{"1 Chr", "1 Chron", "I Chronicles", "대상"}, nil},
	{"2CH", 14, "2 Chronicles", "역대하", 36, []string{"2 Chr", "2 Chron", "II Chronicles", "대하"}, nil},
	{"EZR", 15, "Ezra", "에스라", 10, []string{"Ezr"}, []string{"스"}},
	{"NEH", 16, "Nehemiah", "느헤미야", 13, []string{"Neh", "Ne"}, []string{"느"}},
	{"EST", 17, "Esther", "에스더", 10, []string{"Esth", "Est", "Es"}, []string{"에"}},
	{"JOB", 18, "Job", "욥기", 42, []string{"Jb"}, []string{"욥"}},
	{"PSA", 19, "Psalms", "시편", 150, []string{"Psalm", "Ps", "Psa", "Pss"}, []string{"시"}},
	{"PRO", 20, "Proverbs", "잠언", 31, []string{"Prov", "Pro", "Prv", "Pr"}, []string{"잠"}},
	{"ECC", 21, "Ecclesiastes", "전도서", 12, []string{"Eccl", "Ecc", "Qoh"}, []string{"전"}},
	{"SNG", 22, "Song of Solomon", "아가", 8, []string{"Song of Songs", "Song", "Sng", "SoS", "Canticles"}, []string{"아"}},
	{"ISA", 23, "Isaiah", "이사야", 66, []string{"Isa", "Is"}, []string{"사"}},
	{"JER", 24, "Jeremiah", "예레미야", 52, []string{"Jer", "Je", "Jr"}, []string{"렘"}},
	{"LAM", 25, "Lamentations", "예레미야애가", 5, []string{"Lam", "La", "애가"}, []string{"애"}},
	{"EZK", 26, "Ezekiel", "에스겔", 48, []string{"Ezek", "Eze", "Ezk"}, []string{"겔"}},
	{"DAN", 27, "Daniel", "다니엘", 12, []string{"Dan", "Da", "Dn"}, []string{"단"}},
	{"HOS", 28, "Hosea", "호세아", 14, []string{"Hos", "Ho"}, []string{"호"}},
	{"JOL", 29, "Joel", "요엘", 3, []string{"Joe", "Jl"}, []string{"욜"}},
	{"AMO", 30, "Amos", "아모스", 9, []string{"Amo", "Am"}, []string{"암"}},
	{"OBA", 31, "Obadiah", "오바댜", 1, []string{"Obad", "Oba", "Ob"}, []string{"옵"}},
	{"JON", 32, "Jonah", "요나", 4, []string{"Jnh", "Jon"}, []string{"욘"}},
	{"MIC", 33, "Micah", "미가", 7, []string{"Mic", "Mi"}, []string{"미"}},
	{"NAM", 34, "Nahum", "나훔", 3, []string{"Nah", "Na"}, []string{"나"}},
	{"HAB", 35, "Habakkuk", "하박국", 3, []string{"Hab", "Hb"}, []string{"합"}},
	{"ZEP", 36, "Zephaniah", "스바냐", 3, []string{"Zeph", "Zep", "Zp"}, []string{"습"}},
	{"HAG", 37, "Haggai", "학개", 2, []string{"Hag", "Hg"}, []string{"학"}},
	{"ZEC", 38, "Zechariah", "스가랴", 14, []string{"Zech", "Zec", "Zc"}, []string{"슥"}},
	{"MAL", 39, "Malachi", "말라기", 4, []string{"Mal", "Ml"}, []string{"말"}},
	// ── New Testament ──────────────────────────────────────────────────────────
	{"MAT", 40, "Matthew", "마태복음", 28, []string{"Matt", "Mat", "Mt", "마태"}, []string{"마"}},
	{"MRK", 41, "Mark", "마가복음", 16, []string{"Mrk", "Mar", "Mk", "Mr", "마가"}, []string{"막"}},
	{"LUK", 42, "Luke", "누가복음", 24, []string{"Luk", "Lk", "누가"}, []string{"눅"}},
	{"JHN", 43, "John", "요한복음", 21, []string{"Jhn", "Joh", "Jn", "요한"}, []string{"요"}},
	{"ACT", 44, "Acts", "사도행전", 28, []string{"Act", "Ac", "Acts of the Apostles"}, []string{"행"}},
	{"ROM", 45, "Romans", "로마서", 16, []string{"Rom", "Ro", "Rm"}, []string{"롬"}},
	{"1CO", 46, "1 Corinthians", "고린도전서", 16, []string{"1 Cor", "1 Co", "I Corinthians", "First Corinthians", "고전"}, nil},
	{"2CO", 47, "2 Corinthians", "고린도후서", 13, []string{"2 Cor", "2 Co", "II Corinthians", "Second Corinthians", "고후"}, nil},
	{"GAL", 48, "Galatians", "갈라디아서", 6, []string{"Gal", "Ga"}, []string{"갈"}},
	{"EPH", 49, "Ephesians", "에베소서", 6, []string{"Eph", "Ephes"}, []string{"엡"}},
	{"PHP", 50, "Philippians", "빌립보서", 4, []string{"Phil", "Php", "Pp"}, []string{"빌"}},
	{"COL", 51, "Colossians", "골로새서", 4, []string{"Col", "Co"}, []string{"골"}},
	{"1TH", 52, "1 Thessalonians", "데살로니가전서", 5, []string{"1 Thess", "1 Th", "I Thessalonians", "살전"}, nil},
	{"2TH", 53, "2 Thessalonians", "데살로니가후서", 3, []string{"2 Thess", "2 Th", "II Thessalonians", "살후"}, nil},
	{"1TI", 54, "1 Timothy", "디모데전서", 6, []string{"1 Tim", "1 Ti", "I Timothy", "딤전"}, nil},
	{"2TI", 55, "2 Timothy", "디모데후서", 4, []string{"2 Tim", "2 Ti", "II Timothy", "딤후"}, nil},
	{"TIT", 56, "Titus", "디도서", 3, []string{"Tit", "Ti"}, []string{"딛"}},
	{"PHM", 57, "Philemon", "빌레몬서", 1, []string{"Philem", "Phm", "Pm"}, []string{"몬"}},
	{"HEB", 58, "Hebrews", "히브리서", 13, []string{"Heb"}, []string{"히"}},
	{"JAS", 59, "James", "야고보서", 5, []string{"Jas", "Jm"}, []string{"약"}},
	{"1PE", 60, "1 Peter", "베드로전서", 5, []string{"1 Pet", "1 Pe", "1 Pt", "I Peter", "벧전"}, nil},
	{"2PE", 61, "2 Peter", "베드로후서", 3, []string{"2 Pet", "2 Pe", "2 Pt", "II Peter", "벧후"}, nil},
	{"1JN", 62, "1 John", "요한일서", 5, []string{"1 Jn", "1 Jhn", "I John", "First John", "요일"}, nil},
	{"2JN", 63, "2 John", "요한이서", 1, []string{"2 Jn", "2 Jhn", "II John", "Second John", "요이"}, nil},
	{"3JN", 64, "3 John", "요한삼서", 1, []string{"3 Jn", "3 Jhn", "III John", "Third John", "요삼"}, nil},
	{"JUD", 65, "Jude", "유다서", 1, []string{"Jud", "Jd"}, []string{"유"}},
	{"REV", 66, "Revelation", "요한계시록", 22, []string{"Rev", "Re", "Revelations", "The Revelation", "계시록"}, []string{"계"}},
}

var (
	byCode  = make(map[BookCode]*Book, len(books))
	byName  = make(map[string]BookCode)
	byShort = make(map[string]BookCode)
)

func init() {
	for i := range books {
		b := &books[i]
		byCode[b.Code] = b

		names := append([]string{b.Name, b.NameKR, string(b.Code)}, b.Abbreviations...)
		for _, n := range names {
			register(byName, n, b.Code)
		}
		for _, n := range b.ShortKR {
			register(byShort, n, b.Code)
		}
	}
}

// register panics on a variant claimed by two books: the table must stay bijective per variant.
func register(table map[string]BookCode, name string, code BookCode) {
	key := NormalizeName(name)
	if existing, ok := table[key]; ok && existing != code {
		panic(fmt.Sprintf("bible: name %q maps to both %s and %s", name, existing, code))
	}
	table[key] = code
}

// NormalizeName folds case and drops whitespace and periods so that
// "1 John", "1john" and "1 Jn." all produce comparable keys.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) || r == '.' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// LookupBook resolves any full name or multi-letter abbreviation, in either language.
func LookupBook(name string) (BookCode, bool) {
	code, ok := byName[NormalizeName(name)]
	return code, ok
}

// LookupShortKR resolves single-syllable Korean abbreviations such as "요" or "롬".
func LookupShortKR(name string) (BookCode, bool) {
	code, ok := byShort[NormalizeName(name)]
	return code, ok
}

// BookByCode returns the canonical metadata for code.
func BookByCode(code BookCode) (Book, bool) {
	b, ok := byCode[code]
	if !ok {
		return Book{}, false
	}
	return *b, true
}

// Books returns the canon in order.
func Books() []Book {
	out := make([]Book, len(books))
	copy(out, books)
	return out
}

// DisplayName returns the localized name of the book.
func (c BookCode) DisplayName(lang Language) string {
	b, ok := byCode[c]
	if !ok {
		return string(c)
	}
	if lang == Korean {
		return b.NameKR
	}
	return b.Name
}

// Order returns the canonical position of the book, or 0 if unknown.
func (c BookCode) Order() int {
	if b, ok := byCode[c]; ok {
		return b.Order
	}
	return 0
}

func (c BookCode) Valid() bool {
	_, ok := byCode[c]
	return ok
}
