package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoRepository "github.com/allisson/fieldcrypt/internal/crypto/repository"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
	"github.com/allisson/fieldcrypt/internal/database"
)

// KeyRing returns the master key ring loaded from environment variables,
// unwrapped through the KMS when a key URI is configured.
func (c *Container) KeyRing() (*cryptoDomain.KeyRing, error) {
	var err error
	c.keyRingInit.Do(func() {
		c.keyRing, err = c.initKeyRing()
		if err != nil {
			c.initErrors["keyRing"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRing"]; exists {
		return nil, storedErr
	}
	return c.keyRing, nil
}

// Registry returns the algorithm provider registry.
func (c *Container) Registry() (*cryptoService.Registry, error) {
	var err error
	c.registryInit.Do(func() {
		c.registry, err = cryptoService.NewDefaultRegistry(c.config.KDFPersonalization)
		if err != nil {
			c.initErrors["registry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["registry"]; exists {
		return nil, storedErr
	}
	return c.registry, nil
}

// EncryptionManager returns the envelope encryption manager. The manager's
// configuration is validated on first access so misconfiguration surfaces at
// startup, not at the first encrypt call.
func (c *Container) EncryptionManager() (*cryptoService.Manager, error) {
	var err error
	c.encryptionManagerInit.Do(func() {
		c.encryptionManager, err = c.initEncryptionManager()
		if err != nil {
			c.initErrors["encryptionManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["encryptionManager"]; exists {
		return nil, storedErr
	}
	return c.encryptionManager, nil
}

// KMSService returns the KMS service used to unwrap master keys.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// EnvelopeRepository returns the envelope repository based on the database driver.
func (c *Container) EnvelopeRepository() (cryptoUseCase.EnvelopeRepository, error) {
	var err error
	c.envelopeRepoInit.Do(func() {
		c.envelopeRepo, err = c.initEnvelopeRepository()
		if err != nil {
			c.initErrors["envelopeRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["envelopeRepo"]; exists {
		return nil, storedErr
	}
	return c.envelopeRepo, nil
}

// FieldCryptoUseCase returns the field encryption use case.
func (c *Container) FieldCryptoUseCase() (cryptoUseCase.FieldCryptoUseCase, error) {
	var err error
	c.fieldCryptoUseCaseInit.Do(func() {
		c.fieldCryptoUseCase, err = c.initFieldCryptoUseCase()
		if err != nil {
			c.initErrors["fieldCryptoUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fieldCryptoUseCase"]; exists {
		return nil, storedErr
	}
	return c.fieldCryptoUseCase, nil
}

// RotationUseCase returns the key rotation use case.
func (c *Container) RotationUseCase() (cryptoUseCase.RotationUseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase()
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

// initKeyRing loads the master key ring from environment variables.
func (c *Container) initKeyRing() (*cryptoDomain.KeyRing, error) {
	var unwrapper cryptoDomain.KeyUnwrapper
	if c.config.KMSKeyURI != "" {
		keeper, err := c.KMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open kms keeper: %w", err)
		}
		unwrapper = keeper
	}

	ring, err := cryptoDomain.LoadKeyRingFromEnv(context.Background(), unwrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key ring: %w", err)
	}
	return ring, nil
}

// initEncryptionManager creates and validates the encryption manager.
func (c *Container) initEncryptionManager() (*cryptoService.Manager, error) {
	registry, err := c.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry for encryption manager: %w", err)
	}

	ring, err := c.KeyRing()
	if err != nil {
		return nil, fmt.Errorf("failed to get key ring for encryption manager: %w", err)
	}

	var opts []cryptoService.ManagerOption
	if c.config.EncryptionAlgorithm != "" {
		alg := cryptoDomain.Algorithm(c.config.EncryptionAlgorithm)
		if !alg.Valid() {
			return nil, fmt.Errorf("%w: unknown encryption algorithm %q",
				cryptoDomain.ErrUnknownAlgorithm, c.config.EncryptionAlgorithm)
		}
		opts = append(opts, cryptoService.WithPinnedAlgorithm(alg))
	}

	manager := cryptoService.NewManager(registry, ring, opts...)
	if err := manager.ValidateConfiguration(); err != nil {
		return nil, fmt.Errorf("invalid encryption configuration: %w", err)
	}
	return manager, nil
}

// initEnvelopeRepository creates the envelope repository based on the database driver.
func (c *Container) initEnvelopeRepository() (cryptoUseCase.EnvelopeRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for envelope repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return cryptoRepository.NewPostgreSQLEnvelopeRepository(db), nil
	case database.DriverMySQL:
		return cryptoRepository.NewMySQLEnvelopeRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initFieldCryptoUseCase creates the field encryption use case with all its dependencies.
func (c *Container) initFieldCryptoUseCase() (cryptoUseCase.FieldCryptoUseCase, error) {
	manager, err := c.EncryptionManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption manager for field crypto use case: %w", err)
	}

	baseUseCase := cryptoUseCase.NewFieldCryptoUseCase(manager)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for field crypto use case: %w", err)
		}
		return cryptoUseCase.NewFieldCryptoUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initRotationUseCase creates the rotation use case with all its dependencies.
func (c *Container) initRotationUseCase() (cryptoUseCase.RotationUseCase, error) {
	manager, err := c.EncryptionManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption manager for rotation use case: %w", err)
	}

	envelopeRepo, err := c.EnvelopeRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope repository for rotation use case: %w", err)
	}

	baseUseCase := cryptoUseCase.NewRotationUseCase(manager, envelopeRepo, c.Logger())

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
		}
		return cryptoUseCase.NewRotationUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
