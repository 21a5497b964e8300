// Package anchor publishes key fingerprints to an external ledger gateway.
// Each record is signed before submission so the gateway can attribute it;
// the signer is either classical ed25519 or post-quantum Dilithium3.
package anchor

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

// SeedSize is shared by both supported algorithms.
const SeedSize = 32

// Payload is the canonical record that gets signed. GeneratedAt is RFC 3339
// so the digest is stable across processes.
type Payload struct {
	KeyID       string
	Fingerprint string
	GeneratedAt string
}

func (p Payload) digest() []byte {
	sum := sha256.Sum256([]byte(p.KeyID + "\n" + p.Fingerprint + "\n" + p.GeneratedAt))
	return sum[:]
}

// Signer holds the keypair for one algorithm.
type Signer struct {
	alg   string
	edKey ed25519.PrivateKey
	dilPK *mode3.PublicKey
	dilSK *mode3.PrivateKey
}

// NewSigner derives a keypair from the 32-byte seed. A nil seed draws a
// fresh one, giving the process a throwaway identity.
func NewSigner(alg string, seed []byte) (*Signer, error) {
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, keyerrors.Wrap(keyerrors.KindDependency, "entropy source unavailable", err)
		}
	}
	if len(seed) != SeedSize {
		return nil, keyerrors.Newf(keyerrors.KindInvalidArgument, "signing seed must be %d bytes", SeedSize)
	}

	switch strings.ToLower(alg) {
	case AlgEd25519:
		return &Signer{alg: AlgEd25519, edKey: ed25519.NewKeyFromSeed(seed)}, nil
	case AlgDilithium3:
		var packed [mode3.SeedSize]byte
		copy(packed[:], seed)
		pk, sk := mode3.NewKeyFromSeed(&packed)
		return &Signer{alg: AlgDilithium3, dilPK: pk, dilSK: sk}, nil
	default:
		return nil, keyerrors.Newf(keyerrors.KindInvalidArgument, "unsupported signing algorithm %q", alg)
	}
}

// Alg returns the algorithm label.
func (s *Signer) Alg() string { return s.alg }

// Sign returns the signature and public key for the payload, both tagged
// with the algorithm as "<alg>:<base64>".
func (s *Signer) Sign(p Payload) (signature, publicKey string, err error) {
	digest := p.digest()

	var rawSig, rawPub []byte
	switch s.alg {
	case AlgEd25519:
		rawSig = ed25519.Sign(s.edKey, digest)
		rawPub = s.edKey.Public().(ed25519.PublicKey)
	case AlgDilithium3:
		rawSig = make([]byte, mode3.SignatureSize)
		mode3.SignTo(s.dilSK, digest, rawSig)
		rawPub = s.dilPK.Bytes()
	default:
		return "", "", keyerrors.Newf(keyerrors.KindInvalidArgument, "unsupported signing algorithm %q", s.alg)
	}

	return s.alg + ":" + base64.StdEncoding.EncodeToString(rawSig),
		s.alg + ":" + base64.StdEncoding.EncodeToString(rawPub),
		nil
}

// Verify checks an alg-tagged signature against an alg-tagged public key.
func Verify(publicKey, signature string, p Payload) error {
	pubAlg, rawPub, err := decodeTagged(publicKey)
	if err != nil {
		return err
	}
	sigAlg, rawSig, err := decodeTagged(signature)
	if err != nil {
		return err
	}
	if pubAlg != sigAlg {
		return keyerrors.New(keyerrors.KindInvalidArgument, "signature and public key algorithms differ")
	}

	digest := p.digest()
	switch pubAlg {
	case AlgEd25519:
		if len(rawPub) != ed25519.PublicKeySize {
			return keyerrors.New(keyerrors.KindInvalidArgument, "malformed ed25519 public key")
		}
		if !ed25519.Verify(ed25519.PublicKey(rawPub), digest, rawSig) {
			return keyerrors.New(keyerrors.KindInvalidArgument, "signature verification failed")
		}
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(rawPub); err != nil {
			return keyerrors.Wrap(keyerrors.KindInvalidArgument, "malformed dilithium3 public key", err)
		}
		if !mode3.Verify(&pk, digest, rawSig) {
			return keyerrors.New(keyerrors.KindInvalidArgument, "signature verification failed")
		}
	default:
		return keyerrors.Newf(keyerrors.KindInvalidArgument, "unsupported signing algorithm %q", pubAlg)
	}
	return nil
}

func decodeTagged(value string) (string, []byte, error) {
	alg, encoded, found := strings.Cut(value, ":")
	if !found || alg == "" || encoded == "" {
		return "", nil, keyerrors.New(keyerrors.KindInvalidArgument, "value is not alg-tagged base64")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, keyerrors.Wrap(keyerrors.KindInvalidArgument, "malformed base64", err)
	}
	return alg, raw, nil
}
