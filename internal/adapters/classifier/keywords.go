package classifier

// Listas de keywords. Todas en minúsculas; el orden importa solo en clusters.

// garbageKeywords excluye deportes, precios crypto y entretenimiento.
var garbageKeywords = []string{
	// deportes
	"nfl", "nba", "mlb", "nhl", "mls", "ufc", "wwe", "pga", "lpga",
	"premier league", "la liga", "serie a", "bundesliga", "ligue 1",
	"champions league", "europa league", "world cup", "euro 2024", "euro 2028",
	"super bowl", "stanley cup", "world series", "march madness",
	"touchdown", "quarterback", "rushing yards", "receiving yards",
	"rebounds", "assists", "three-pointers", "free throws",
	"home run", "strikeout", "batting average", "era",
	"goals scored", "clean sheet", "penalty kick", "yellow card",
	"knockout", "submission", "tale of the tape", "weigh-in",
	"tennis", "wimbledon", "us open", "french open", "australian open",
	"golf", "masters", "pga championship", "the open",
	"f1", "formula 1", "nascar", "indycar", "motogp",
	"olympics", "paralympics", "medal count",
	"esports", "counter-strike", "valorant", "league of legends", "dota",
	"fortnite", "call of duty", "overwatch",
	"lakers", "celtics", "warriors", "heat", "bulls", "knicks", "nets",
	"cowboys", "patriots", "chiefs", "eagles", "packers",
	"bulldogs", "crimson tide", "buckeyes", "wolverines",
	"yankees", "dodgers", "red sox", "cubs",

	// precios crypto
	"bitcoin price", "btc price", "ethereum price", "eth price",
	"solana price", "sol price", "crypto price", "token price",
	"memecoin", "meme coin", "nft drop", "airdrop",
	"all time high", "ath", "market cap",

	// entretenimiento
	"movie", "film release", "box office", "netflix", "disney+", "hbo",
	"album drop", "song", "grammy", "emmy", "oscar", "golden globe",
	"taylor swift", "drake album", "kanye", "kardashian",
	"bachelor", "bachelorette", "survivor", "big brother",
	"youtube subscribers", "tiktok followers", "twitch",
	"streamer", "influencer",
	"speedrun", "world record gaming", "video game release",

	// clima / naturales
	"earthquake magnitude", "hurricane category", "tornado",
	"tsunami warning", "volcano eruption",
}

var garbagePatterns = []string{
	`\b(nba|nfl|mlb|nhl|ufc|mma)\b`,
	`\b(rebounds?|assists?|touchdowns?|strikeouts?)\b`,
	`\bover/under\b`,
	`\bo/u\s*\d`,
	`\b(spread|moneyline|parlay)\b`,
	`\bvs\.?\s+[a-z]+\s+(heat|lakers|warriors|celtics|bulls)`,
}

// entidades cortas o ambiguas: solo como palabra completa
var wordEntities = []string{
	"us", "uk", "eu", "un", "uae",
	"iran", "iraq", "cuba", "gaza", "mali", "chad",
	"nato", "idf", "cia", "fbi", "gru", "fsb", "sdf",
	"assad", "modi",
}

// entidades seguras como substring
var substringEntities = []string{
	"russia", "russian", "ukraine", "ukrainian", "china", "chinese",
	"taiwan", "taiwanese", "israel", "israeli", "palestine", "palestinian",
	"venezuela", "venezuelan", "syria", "syrian", "lebanon", "lebanese",
	"north korea", "south korea", "korean",
	"afghanistan", "pakistan", "pakistani", "saudi", "yemen", "yemeni",
	"turkey", "turkish", "egypt", "egyptian", "libya", "libyan",
	"belarus", "belarusian", "crimea", "crimean",
	"mexico", "mexican", "colombia", "colombian",
	"japan", "japanese", "philippines", "filipino",
	"vietnam", "vietnamese", "myanmar", "burma",
	"india", "indian", "kashmir",
	"sudan", "sudanese", "ethiopia", "ethiopian", "somalia", "somalian",

	"kyiv", "kiev", "kharkiv", "mariupol", "bakhmut", "pokrovsk",
	"moscow", "beijing", "taipei", "tehran", "damascus", "beirut",
	"jerusalem", "tel aviv", "gaza city", "rafah",
	"caracas", "pyongyang", "seoul", "kabul", "islamabad",

	"putin", "zelensky", "zelenskyy", "khamenei", "netanyahu",
	"xi jinping", "kim jong", "maduro", "erdogan", "lukashenko",
	"lavrov", "shoigu", "nasrallah", "sinwar", "gallant",

	"hamas", "hezbollah", "houthi", "houthis", "taliban", "wagner",
	"irgc", "mossad", "kremlin", "pentagon",
	"united nations", "security council", "european union",
}

var actions = []string{
	// militares
	"invasion", "invade", "invaded", "invades",
	"strike", "strikes", "struck", "airstrike", "air strike",
	"missile", "drone strike", "bombing", "bomb", "bombed",
	"attack", "attacked", "attacks", "offensive",
	"capture", "captured", "captures", "seize", "seized",
	"advance", "advancing", "retreat", "retreating",
	"counteroffensive", "counter-offensive",
	"occupy", "occupied", "occupation",
	"annex", "annexed", "annexation",
	"blockade", "siege", "encircle",
	"deploy", "deployed", "deployment",
	"shell", "shelling", "artillery",
	"clash", "clashes", "clashed",

	// paz / diplomacia
	"ceasefire", "cease-fire", "truce", "armistice",
	"peace deal", "peace treaty", "peace talks", "peace agreement",
	"negotiate", "negotiation", "negotiations",
	"summit", "diplomatic talks",
	"disarm", "disarmament",

	// cambio político
	"regime change", "regime fall", "fall of",
	"coup", "uprising", "revolution", "revolt",
	"resign", "resigns", "resignation",
	"oust", "ousted", "topple", "toppled", "overthrow",
	"assassinate", "assassination",

	// sanciones
	"sanctions", "sanction", "sanctioned",
	"embargo", "embargoed",
	"tariff", "tariffs",

	// escalada
	"escalation", "escalate", "escalates",
	"nuclear", "atomic", "warhead",
	"war", "warfare", "conflict",

	// humanitario
	"casualties", "killed", "deaths",
	"hostage", "hostages", "prisoner",
	"war crime", "genocide", "atrocity",

	// "X out as leader by..."
	"out as", "out by", "removed as", "no longer",
	"president", "prime minister", "leader",
	"remain", "remains",
}

type clusterRule struct {
	name     string
	keywords []string
}

// Orden de prioridad: gana el primer cluster con match.
var clusterRules = []clusterRule{
	{"ukraine", []string{
		"ukraine", "ukrainian", "kyiv", "kiev", "kharkiv", "mariupol",
		"bakhmut", "pokrovsk", "zelensky", "zelenskyy", "crimea",
		// Rusia va aquí: casi todos sus mercados son de la guerra
		"russia", "russian", "putin", "moscow", "kremlin",
	}},
	{"mideast", []string{
		"israel", "israeli", "gaza", "palestine", "palestinian",
		"iran", "iranian", "tehran", "khamenei",
		"lebanon", "lebanese", "beirut", "hezbollah", "nasrallah",
		"syria", "syrian", "damascus", "assad",
		"yemen", "yemeni", "houthi", "houthis",
		"iraq", "iraqi", "baghdad",
		"netanyahu", "gallant", "idf", "hamas", "sinwar",
	}},
	{"china", []string{
		"china", "chinese", "beijing", "xi jinping",
		"taiwan", "taiwanese", "taipei",
		"south china sea", "taiwan strait",
	}},
	{"latam", []string{
		"venezuela", "venezuelan", "caracas", "maduro",
		"cuba", "cuban", "havana",
		"mexico", "mexican",
		"colombia", "colombian",
	}},
	{"europe", []string{
		"nato", "european union",
		"uk ", "u.k.", "britain", "british",
		"france", "french", "macron",
		"germany", "german", "scholz",
		"poland", "polish",
	}},
	{"africa", []string{
		"sudan", "sudanese", "khartoum",
		"ethiopia", "ethiopian",
		"somalia", "somalian", "mogadishu",
		"libya", "libyan", "tripoli",
		"nigeria", "nigerian",
	}},
}

// ClusterOther es el cluster por defecto.
const ClusterOther = "other"
