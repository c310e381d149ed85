package normalizer

import domainInbound "github.com/AzielCF/az-relay/domains/inbound"

// Placeholders stand in for the text of messages that carry none. They are
// stored verbatim in conversation history, so they follow the product locale.
var placeholders = map[domainInbound.ContentType]string{
	domainInbound.ContentImage:       "[Imagem]",
	domainInbound.ContentVideo:       "[Vídeo]",
	domainInbound.ContentAudio:       "[Áudio]",
	domainInbound.ContentDocument:    "[Documento]",
	domainInbound.ContentSticker:     "[Figurinha]",
	domainInbound.ContentLocation:    "[Localização]",
	domainInbound.ContentContact:     "[Contato]",
	domainInbound.ContentUnsupported: "[Mensagem não suportada]",
}

func Placeholder(ct domainInbound.ContentType) string {
	return placeholders[ct]
}
