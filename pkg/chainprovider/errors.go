package chainprovider

import "github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"

func errTxNotFound(txHash string) error {
	return poierrors.New(poierrors.KindStorageNotFound, "transaction not found: "+txHash)
}
