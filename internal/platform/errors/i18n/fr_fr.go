package i18n

var frFRCatalog = &Catalog{
	locale: "fr-FR",
	messages: map[Code]string{
		CodeUnknown: "Une erreur inattendue est survenue",

		CodeInvalidPayload:  "Le corps de la requête est invalide : {{.Reason}}",
		CodeInvalidCaseType: "Le cas type n°{{.Index}} est invalide : {{.Reason}}",
		CodeInvalidDate:     "La date {{.Date}} doit être au format AAAA-MM-JJ",

		CodeParameterNotFound:   "Le paramètre {{.Name}} n'existe pas",
		CodeVariableNotFound:    "La variable {{.Name}} n'existe pas",
		CodeMetadataUnavailable: "Les métadonnées des paramètres et variables sont indisponibles",

		CodeReformParameterUnknown: "La réforme cible un paramètre inconnu : {{.Name}}",

		CodeDatasetUnavailable: "Le jeu de données de population est illisible",
		CodeDatasetInvalid:     "Le jeu de données de population est invalide : {{.Reason}}",

		CodeEngineUnavailable: "Le moteur de simulation est indisponible",
		CodeEngineRejected:    "Le moteur de simulation a refusé le calcul : {{.Reason}}",
		CodeEngineMismatch:    "Le moteur de simulation a renvoyé un résultat inattendu",

		CodeRunStoreDisabled: "L'historique des calculs n'est pas activé sur ce serveur",
		CodeNotFound:         "Ressource introuvable",
	},
}
