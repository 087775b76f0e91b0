package cryptoutils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultCommonName is the subject of generated certificates.
	DefaultCommonName = "localhost"

	// DefaultValidity is how long a generated certificate stays valid.
	DefaultValidity = 10 * 365 * 24 * time.Hour
)

// VerifyCertificate validates that a certificate matches a given private key and has the expected common name.
// It performs the following checks:
//   - The certificate can be parsed correctly
//   - The common name matches the expected value
//   - The public key in the certificate corresponds to the provided private key
func VerifyCertificate(keyPEM, certPEM []byte, expectedCN string) error {
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil || keyBlock.Type != "PRIVATE KEY" {
		return errors.New("failed to decode private key PEM block")
	}

	privateKey, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return errors.New("failed to decode certificate PEM block")
	}

	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	if cert.Subject.CommonName != expectedCN {
		return fmt.Errorf("CommonName is %s, expected %s", cert.Subject.CommonName, expectedCN)
	}

	signer, ok := privateKey.(crypto.Signer)
	if !ok {
		return errors.New("unsupported key type")
	}

	ecdsaCertKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("unsupported key type")
	}
	ecdsaPrivKey, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok {
		return errors.New("private key type doesn't match certificate")
	}
	if !ecdsaCertKey.Equal(ecdsaPrivKey) {
		return errors.New("private key doesn't match certificate")
	}
	return nil
}

// GenerateSelfSigned creates an ECDSA P-256 key and a self-signed certificate
// for cn, valid for localhost and the loopback addresses.
//
// Returns the key and the certificate, both PEM encoded.
func GenerateSelfSigned(cn string, validity time.Duration) (keyPEM []byte, certPEM []byte, err error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("could not generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, nil, fmt.Errorf("could not generate serial number: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"Test"},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	if cn != "localhost" {
		template.DNSNames = append(template.DNSNames, cn)
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, privateKey.Public(), privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create certificate: %w", err)
	}

	privkeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("could not marshal key: %w", err)
	}

	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privkeyBytes})
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	return keyPEM, certPEM, nil
}

// RandomCert generates a random self-signed certificate to use
// for https servers where chain of trust does not matter, for
// example when the server is running on localhost.
func RandomCert() (tls.Certificate, error) {
	keyPEM, certPEM, err := GenerateSelfSigned(DefaultCommonName, DefaultValidity)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// EnsureKeyPair generates a self-signed key pair into keyFile and certFile
// unless both already exist. It reports whether new material was written.
func EnsureKeyPair(keyFile, certFile string) (bool, error) {
	if fileExists(keyFile) && fileExists(certFile) {
		return false, nil
	}

	keyPEM, certPEM, err := GenerateSelfSigned(DefaultCommonName, DefaultValidity)
	if err != nil {
		return false, err
	}

	if err := writeFile(keyFile, keyPEM, 0o600); err != nil {
		return false, fmt.Errorf("could not write key: %w", err)
	}
	if err := writeFile(certFile, certPEM, 0o644); err != nil {
		return false, fmt.Errorf("could not write certificate: %w", err)
	}
	return true, nil
}

// LoadKeyPair reads a PEM key pair from disk.
func LoadKeyPair(keyFile, certFile string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("could not load key pair: %w", err)
	}
	return &cert, nil
}

// VerifyKeyPairFiles runs VerifyCertificate on the PEM files at keyFile and certFile.
func VerifyKeyPairFiles(keyFile, certFile, expectedCN string) error {
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("could not read key: %w", err)
	}
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return fmt.Errorf("could not read certificate: %w", err)
	}
	return VerifyCertificate(keyPEM, certPEM, expectedCN)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}
