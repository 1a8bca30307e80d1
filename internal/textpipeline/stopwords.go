package textpipeline

// stopwordSet mirrors nltk's Russian stopword list plus the domain additions
// the original pipeline layers on top (greeting boilerplate plus "запрос"
// and "оригинальный"), minus "не" which the original explicitly keeps.
var stopwordSet = buildStopwords()

func buildStopwords() map[string]struct{} {
	base := []string{
		"и", "в", "во", "что", "он", "на", "я", "с", "со", "как", "а", "то",
		"все", "она", "так", "его", "но", "да", "ты", "к", "у", "же", "вы", "за",
		"бы", "по", "только", "ее", "мне", "было", "вот", "от", "меня", "еще",
		"нет", "о", "из", "ему", "теперь", "когда", "даже", "ну", "вдруг", "ли",
		"если", "уже", "или", "ни", "быть", "был", "него", "до", "вас", "нибудь",
		"опять", "уж", "вам", "ведь", "там", "потом", "себя", "ничего", "ей",
		"может", "они", "тут", "где", "есть", "надо", "ней", "для", "мы", "тебя",
		"их", "чем", "была", "сам", "чтоб", "без", "будто", "чего", "раз", "тоже",
		"себе", "под", "будет", "ж", "тогда", "кто", "этот", "того", "потому",
		"этого", "какой", "совсем", "ним", "здесь", "этом", "один", "почти",
		"мой", "тем", "чтобы", "нее", "сейчас", "были", "куда", "зачем", "всех",
		"никогда", "можно", "при", "наконец", "два", "об", "другой", "хоть",
		"после", "над", "больше", "тот", "через", "эти", "нас", "про", "всего",
		"них", "какая", "много", "разве", "три", "эту", "моя", "впрочем",
		"хорошо", "свою", "этой", "перед", "иногда", "лучше", "чуть", "том",
		"нельзя", "такой", "им", "более", "всегда", "конечно", "всю", "между",
	}
	extra := []string{
		"добрый", "день", "вечер", "привет", "здравствуйте", "запрос",
		"оригинальный",
	}
	sw := make(map[string]struct{}, len(base)+len(extra))
	for _, w := range base {
		sw[w] = struct{}{}
	}
	for _, w := range extra {
		sw[w] = struct{}{}
	}
	return sw
}

func isStopword(token string) bool {
	_, ok := stopwordSet[token]
	return ok
}
