package secedgar

// SearchResponse ist die Antwort der EDGAR-Volltextsuche (nur die benötigten Felder).
type SearchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// Hit ist ein einzelner Treffer der Volltextsuche.
type Hit struct {
	ID     string    `json:"_id"`
	Source HitSource `json:"_source"`
}

// HitSource enthält die Metadaten einer Einreichung. Ältere Indexversionen
// verwenden andere Feldnamen, daher die Alternativen.
type HitSource struct {
	Adsh            string   `json:"adsh"`
	AccessionNumber string   `json:"accession_number"`
	Ciks            []string `json:"ciks"`
	CIK             string   `json:"cik"`
	DisplayNames    []string `json:"display_names"`
	CompanyName     string   `json:"company_name"`
	Form            string   `json:"form"`
	FileType        string   `json:"file_type"`
	FileDate        string   `json:"file_date"`
	FiledAt         string   `json:"filed_at"`
	FileDescription string   `json:"file_description"`
}

// Filing ist eine aufbereitete Einreichung.
type Filing struct {
	AccessionNumber string
	CIK             string
	CompanyName     string
	FormType        string
	FiledAt         string
	DocumentURL     string
	Description     string
}
