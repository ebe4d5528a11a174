package migration

import (
	"fmt"
	"log"

	"foodgram/entities"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";")

	if err := db.AutoMigrate(&entities.User{}); err != nil {
		log.Fatalf("Error migrating user database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Follow{}); err != nil {
		log.Fatalf("Error migrating follow database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Tag{}, &entities.Ingredient{}); err != nil {
		log.Fatalf("Error migrating catalog database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Recipe{}, &entities.RecipeIngredient{}, &entities.RecipeTag{}); err != nil {
		log.Fatalf("Error migrating recipe database: %v", err)
		return err
	}
	if err := db.AutoMigrate(&entities.Favorite{}, &entities.ShoppingCart{}); err != nil {
		log.Fatalf("Error migrating interaction database: %v", err)
		return err
	}

	fmt.Println("Database migration complete")
	return nil
}
