package tokenizer

import "strings"

// stopWords maps an ISO 639-1 language code to its excluded terms. The
// lists cover the languages the catalog most commonly declares.
var stopWords = map[string]map[string]struct{}{
	"en": set(`a about after all also an and any are as at be because been but by can could did do does
		for from had has have he her him his how i if in into is it its just me more my no not of on one
		only or other our out she so some than that the their them then there these they this those to
		up was we were what when where which who will with would you your`),
	"fr": set(`au aux avec ce ces dans de des du elle en et eux il ils je la le les leur lui ma mais me
		même mes moi mon ne nos notre nous on ou par pas pour qu que qui sa se ses son sur ta te tes toi
		ton tu un une vos votre vous c d j l à m n s t y été être avait était`),
	"de": set(`aber als am an auch auf aus bei bin bis da dann das dass dem den der des die doch du ein
		eine einem einen einer eines er es für hat hatte ich ihr im in ist ja kann mit nach nicht noch
		nur ob oder sich sie sind so um und uns von vor war was wie wir zu zum zur über`),
	"es": set(`a al algo como con de del el ella ellas ellos en entre era es esa ese eso esta este fue ha
		hay la las le les lo los me mi muy más no nos o para pero por que se si sin sobre su sus te tu un
		una uno y ya él`),
}

func set(words string) map[string]struct{} {
	fields := strings.Fields(words)
	m := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		m[w] = struct{}{}
	}
	return m
}
