package fonts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelfHostRewritesURLsAndPicksPreload(t *testing.T) {
	css := `
@font-face { font-family: 'Roboto'; src: url(https://fonts.gstatic.com/roboto.woff2) format('woff2'); }
@font-face { font-family: 'Lato'; src: url(https://fonts.gstatic.com/lato.woff2) format('woff2'); }
`
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		return []byte("fake-woff2-bytes-for-" + url), nil
	}

	res, err := SelfHost(context.Background(), css, fetch, "assets/fonts", 3)
	require.NoError(t, err)
	require.Len(t, res.Faces, 2)
	require.Len(t, res.PreloadFaces, 2)
	require.NotContains(t, res.RewrittenCSS, "fonts.gstatic.com")
	require.Contains(t, res.RewrittenCSS, ".woff2")
}

func TestSelfHostCapsPreloadAtThree(t *testing.T) {
	css := `
@font-face { font-family: 'A'; src: url(https://fonts.gstatic.com/a.woff2) format('woff2'); }
@font-face { font-family: 'B'; src: url(https://fonts.gstatic.com/b.woff2) format('woff2'); }
@font-face { font-family: 'C'; src: url(https://fonts.gstatic.com/c.woff2) format('woff2'); }
@font-face { font-family: 'D'; src: url(https://fonts.gstatic.com/d.woff2) format('woff2'); }
`
	fetch := func(ctx context.Context, url string) ([]byte, error) { return []byte("x"), nil }
	res, err := SelfHost(context.Background(), css, fetch, "assets/fonts", 0)
	require.NoError(t, err)
	require.Len(t, res.Faces, 4)
	require.Len(t, res.PreloadFaces, 3)
}
