package textparse

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var (
	moradorWords   = set("MORADOR", "MORADORA", "M")
	visitanteWords = set("VISITANTE", "VISITA", "VIS")
	prestadorWords = set("PRESTADOR", "PRESTADORA", "PREST")

	colorWords = set(
		"PRETO", "PRETA", "BRANCO", "BRANCA", "PRATA", "CINZA", "CHUMBO", "GRAFITE",
		"VERMELHO", "VERMELHA", "VINHO", "AZUL", "VERDE", "AMARELO", "AMARELA",
		"MARROM", "BEGE", "DOURADO", "DOURADA", "LARANJA", "ROXO", "ROXA", "ROSA",
	)

	// Car and motorcycle models and makes seen at the gate. Near misses of
	// these (one letter dropped or doubled) are also accepted as models.
	modelWords = set(
		"GOL", "JETTA", "POLO", "VIRTUS", "TCROSS", "NIVUS", "SAVEIRO", "VOYAGE", "FOX", "UP",
		"AMAROK", "TIGUAN", "TAOS", "FUSCA", "PARATI", "SANTANA",
		"ONIX", "PRISMA", "CRUZE", "TRACKER", "S10", "SPIN", "CELTA", "CORSA", "MONTANA",
		"CLASSIC", "COBALT", "EQUINOX", "AGILE",
		"HB20", "HB20S", "CRETA", "TUCSON", "IX35", "AZERA", "SANTAFE",
		"CIVIC", "FIT", "CITY", "HRV", "WRV", "CRV",
		"COROLLA", "ETIOS", "HILUX", "YARIS", "SW4", "RAV4", "CAMRY",
		"KA", "FIESTA", "FOCUS", "ECOSPORT", "RANGER", "FUSION", "TERRITORY", "MAVERICK",
		"PALIO", "UNO", "MOBI", "ARGO", "CRONOS", "TORO", "STRADA", "SIENA", "PUNTO", "PULSE",
		"FASTBACK", "IDEA", "DOBLO", "FIORINO",
		"RENEGADE", "COMPASS", "COMMANDER",
		"SANDERO", "LOGAN", "DUSTER", "KWID", "CAPTUR", "OROCH", "CLIO",
		"KICKS", "VERSA", "SENTRA", "FRONTIER", "MARCH", "TIIDA",
		"C3", "C4", "AIRCROSS", "208", "2008", "3008", "308",
		"OUTLANDER", "PAJERO", "L200", "ASX", "LANCER", "ECLIPSE",
		"SPORTAGE", "CERATO", "SOUL", "PICANTO", "TIGGO", "ARRIZO",
		"BIZ", "CG", "TITAN", "FAN", "HORNET", "XRE", "NMAX", "PCX", "TWISTER", "LEAD", "POP",
		"VW", "VOLKSWAGEN", "FIAT", "FORD", "CHEVROLET", "GM", "HONDA", "TOYOTA", "HYUNDAI",
		"RENAULT", "NISSAN", "JEEP", "PEUGEOT", "CITROEN", "KIA", "MITSUBISHI", "BMW",
		"AUDI", "MERCEDES", "VOLVO", "CHERY", "CAOA", "BYD", "YAMAHA", "SUZUKI",
	)

	// Models that are also common first names or surnames.
	modelHomonyms = set("SANTANA", "MONTANA", "SIENA", "CLIO", "LOGAN", "TORO", "MERCEDES", "PARATI")

	// Tokens that carry no field on their own.
	stopWords = set(
		"DE", "DA", "DO", "DAS", "DOS", "E", "COM", "SEM", "NO", "NA", "NOS", "NAS", "EM",
		"O", "A", "OS", "AS", "UM", "UMA", "PARA", "PRA", "POR", "AO",
		"CARRO", "VEICULO", "MOTO", "PLACA", "COR", "MODELO", "TAG",
		"ENTROU", "SAIU", "ENTRADA", "SAIDA", "ACESSO", "ACESSOU", "CHEGOU", "PORTARIA", "PORTAO",
		"HOJE", "AGORA", "HORAS", "HORA", "H", "DIA", "SERVICO", "SERVICOS",
		"BLOCO", "BLCO", "BLO", "BLC", "BL", "B", "APARTAMENTO", "APART", "APTO", "APTA", "APT", "AP",
	)

	// Connectors allowed inside a person name ("MARIA DA SILVA").
	nameConnectors = set("DE", "DA", "DO", "DAS", "DOS", "E")

	storeNames = [][]string{
		{"MERCADO", "LIVRE"}, {"MERCADOLIVRE"}, {"AMAZON"}, {"SHOPEE"}, {"SHEIN"},
		{"ALIEXPRESS"}, {"MAGAZINE", "LUIZA"}, {"MAGALU"}, {"AMERICANAS"}, {"CORREIOS"},
		{"IFOOD"}, {"RAPPI"}, {"NATURA"}, {"BOTICARIO"}, {"KABUM"}, {"SUBMARINO"},
		{"CASAS", "BAHIA"}, {"NETSHOES"}, {"RENNER"}, {"RIACHUELO"}, {"CENTAURO"},
		{"DAFITI"}, {"TEMU"}, {"LOGGI"}, {"JADLOG"}, {"SEDEX"}, {"TOTAL", "EXPRESS"},
		{"ZARA"}, {"CARREFOUR"}, {"DROGASIL"}, {"RAIA"},
	}

	parcelKinds = set(
		"CAIXA", "CAIXINHA", "PACOTE", "PACOTINHO", "ENVELOPE", "SACOLA", "SACO",
		"CARTA", "DOCUMENTO", "EMBRULHO", "VOLUME", "MALOTE", "REVISTA",
	)

	parcelNoticeWords = set("AVISADO", "AVISADA", "NOTIFICADO", "NOTIFICADA", "COMUNICADO", "COMUNICADA")

	parcelLabels = set("LOJA", "TIPO", "IDENTIFICACAO", "RASTREIO", "CODIGO")
)

func in(words map[string]struct{}, w string) bool {
	_, ok := words[w]
	return ok
}
