// File: internal/scraper/selectors.go
package scraper

// The portal is a fixed ExtJS application; every selector below is pinned to
// its rendered markup. There is deliberately no discovery logic here.
const (
	selUsername     = "#username"
	selPassword     = "#password"
	selCaptchaImage = "//*[@id=\"captcha\"]"
	selCaptchaInput = ".inp-capt"

	selMenuHeader = "span.x-panel-header-text"
	selTreeNode   = "span.x-tree3-node-text"
	selButton     = "button.x-btn-text"

	// Closing-date cell, located by its row label rather than an id; the grid
	// generates ids per render.
	selClosingDateField = "//tr[.//span[text()='Data Encerramento']]//td[2]//b"
	selFocusedInput     = "input:focus"

	selProgressIndicator = "div.my-paging-display.x-component:has-text('A visualizar'):visible"

	xpathWelcomeMarker = "//*[contains(text(), 'Bem-vindo')]"

	labelQueryMenu = "Consulta"
	labelQueryItem = "Consultas"
	labelSave      = "Salvar"
	labelExecute   = "Executar"
	labelExport    = "Exportar"

	selExportReady = "button.x-btn-text:has-text('Exportar')"
	selExecuteBtn  = "button.x-btn-text:has-text('Executar')"
	selSaveBtn     = "button.x-btn-text:has-text('Salvar')"
)
