package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<ul>
			<li><a href="/device?receiptLineKey=ABC&tab=1">  My
			  Perla  </a></li>
			<li><a name="no-href">skip</a></li>
			<li><a href="/logout">Déconnexion</a></li>
		</ul>`))
	if err != nil {
		t.Fatal(err)
	}

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "My Perla", Href: "/device?receiptLineKey=ABC&tab=1"},
		{Name: "Déconnexion", Href: "/logout"},
	}, anchors)
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{in: "  N° série :  08K8-FJKL \n", expect: "N° série : 08K8-FJKL"},
		{in: "\tMise en service le\n\n04-06-2024", expect: "Mise en service le 04-06-2024"},
		{in: "", expect: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, CleanText(test.in))
	}
}
