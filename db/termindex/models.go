package termindex

type DocID int

type Document struct {
	ID    DocID  `json:"id"`
	Name  string `json:"docname"`
	File  string `json:"filename"`
	Title string `json:"title"`
}

// Object is one documented symbol (module, class, function, method...).
type Object struct {
	Prefix      string `json:"prefix"`
	Name        string `json:"name"`
	FullName    string `json:"fullname"`
	Doc         DocID  `json:"doc"`
	Domain      string `json:"domain"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Anchor      string `json:"anchor"`
}

// Data is the raw material of an Index. Every posting and object must
// reference a document in Documents.
type Data struct {
	Documents  []Document
	Terms      map[string][]DocID
	TitleTerms map[string][]DocID
	Objects    []Object
}

type Hit struct {
	Document Document `json:"document"`
	Score    int      `json:"score"`
	Matched  []string `json:"matched"`
}

type ObjectHit struct {
	Object   Object   `json:"object"`
	Document Document `json:"document"`
	Score    int      `json:"score"`
}

type Stats struct {
	Documents  int `json:"documents"`
	Terms      int `json:"terms"`
	TitleTerms int `json:"title_terms"`
	Objects    int `json:"objects"`
}
