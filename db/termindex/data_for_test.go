package termindex

var testDocuments = []Document{
	{ID: 0, Name: "index", File: "index.rst", Title: "DocTR: Document Text Recognition"},
	{ID: 1, Name: "models", File: "models.rst", Title: "doctr.models"},
	{ID: 2, Name: "datasets", File: "datasets.rst", Title: "doctr.datasets"},
	{ID: 3, Name: "utils", File: "utils.rst", Title: "doctr.utils"},
}

var testObjects = []Object{
	{Prefix: "doctr.models", Name: "ocr_predictor", FullName: "doctr.models.ocr_predictor", Doc: 1, Domain: "py", Kind: "function", Description: "Python function", Priority: 1, Anchor: "doctr.models.ocr_predictor"},
	{Prefix: "doctr.models", Name: "detection", FullName: "doctr.models.detection", Doc: 1, Domain: "py", Kind: "module", Description: "Python module", Priority: 0, Anchor: "module-doctr.models.detection"},
	{Prefix: "doctr.datasets", Name: "FUNSD", FullName: "doctr.datasets.FUNSD", Doc: 2, Domain: "py", Kind: "class", Description: "Python class", Priority: 1, Anchor: "doctr.datasets.FUNSD"},
	{Prefix: "doctr.datasets", Name: "CORD", FullName: "doctr.datasets.CORD", Doc: 2, Domain: "py", Kind: "class", Description: "Python class", Priority: 1, Anchor: "doctr.datasets.CORD"},
	{Prefix: "doctr.utils.metrics", Name: "LocalizationConfusion", FullName: "doctr.utils.metrics.LocalizationConfusion", Doc: 3, Domain: "py", Kind: "class", Description: "Python class", Priority: 1, Anchor: "doctr.utils.metrics.LocalizationConfusion"},
	{Prefix: "doctr.utils.metrics", Name: "TextMatch", FullName: "doctr.utils.metrics.TextMatch", Doc: 3, Domain: "py", Kind: "class", Description: "Python class", Priority: 1, Anchor: "doctr.utils.metrics.TextMatch"},
}

func newTestIndex() *Index {
	return New(Data{
		Documents: testDocuments,
		Terms: map[string][]DocID{
			"detect":   {3, 1},
			"recognit": {1},
			"model":    {0, 1, 1},
			"dataset":  {0, 2},
			"metric":   {3},
			"ocr":      {0, 1, 2},
			"funsd":    {2},
			"cord":     {2},
		},
		TitleTerms: map[string][]DocID{
			"doctr":    {0, 1, 2, 3},
			"model":    {1},
			"dataset":  {2},
			"util":     {3},
			"recognit": {0},
		},
		Objects: testObjects,
	})
}
