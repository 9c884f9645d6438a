package catalog

import (
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

func init() {
	sources.Register("catalog.mercadolivre", NewMercadoLivreSource)
	sources.Register("catalog.vtex", NewVTEXSource)
}
